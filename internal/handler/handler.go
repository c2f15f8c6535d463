package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"svgcache-api/internal/gateway"
	"svgcache-api/internal/imagecache"
	"svgcache-api/internal/metrics"
	"svgcache-api/internal/middleware"
	"svgcache-api/internal/template"
	"svgcache-api/internal/upstream"
)

const (
	svgContentType = "image/svg+xml"
	immutableCache = "public, max-age=31536000, immutable"
)

type Handler struct {
	gateway   *gateway.Gateway
	renderer  *template.Renderer
	stats     *imagecache.Stats
	breaker   *upstream.CircuitBreaker
	storeMode string
}

func New(gw *gateway.Gateway, renderer *template.Renderer) *Handler {
	return &Handler{
		gateway:  gw,
		renderer: renderer,
	}
}

// SetHealthSources wires the data reported by HandleHealth.
func (h *Handler) SetHealthSources(storeMode string, stats *imagecache.Stats, breaker *upstream.CircuitBreaker) {
	h.storeMode = storeMode
	h.stats = stats
	h.breaker = breaker
}

type errorResponse struct {
	Error   string  `json:"error"`
	Content *string `json:"content,omitempty"`
}

// HandleIndex serves the landing page.
func (h *Handler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	if err := h.renderer.RenderIndex(w, h.gateway.RequiresKey()); err != nil {
		middleware.LogWithTrace(r.Context()).Error("Failed to render index", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error", nil)
	}
}

// HandleFile serves GET /{file}, an already cached image.
func (h *Handler) HandleFile(w http.ResponseWriter, r *http.Request) {
	name, ok := svgName(r, "/")
	if !ok {
		metrics.ErrorsTotal.WithLabelValues("not_found").Inc()
		writeError(w, http.StatusNotFound, "Not found", nil)
		return
	}

	img, err := h.gateway.Resolve(r.Context(), name)
	if err != nil {
		if errors.Is(err, gateway.ErrNotFound) || gateway.KindOf(err) != 0 {
			metrics.ErrorsTotal.WithLabelValues("not_found").Inc()
			writeError(w, http.StatusNotFound, "File not found", nil)
			return
		}
		h.writeGatewayError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", svgContentType)
	w.Header().Set("Cache-Control", immutableCache)
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img.Body)
}

// HandleGenerate serves GET /api/generate?name=&key=.
func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	names := q["name"]
	if len(names) != 1 {
		metrics.ErrorsTotal.WithLabelValues(gateway.KindInvalidInput.String()).Inc()
		writeError(w, http.StatusBadRequest, "Filename not provided", nil)
		return
	}
	h.ensure(w, r, names[0], single(q["key"]))
}

// HandleGeneratePath serves GET /api/{file} where file is "<name>.svg".
func (h *Handler) HandleGeneratePath(w http.ResponseWriter, r *http.Request) {
	name, ok := svgName(r, "/api/")
	if !ok {
		metrics.ErrorsTotal.WithLabelValues("not_found").Inc()
		writeError(w, http.StatusNotFound, "Not found", nil)
		return
	}
	h.ensure(w, r, name, single(r.URL.Query()["key"]))
}

func (h *Handler) ensure(w http.ResponseWriter, r *http.Request, name, key string) {
	loc, err := h.gateway.Ensure(r.Context(), name, key)
	if err != nil {
		h.writeGatewayError(w, r, err)
		return
	}
	w.Header().Set("Location", loc)
	w.WriteHeader(http.StatusFound)
}

// HandleHealth reports liveness together with cache counters.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status":  "ok",
		"store":   h.storeMode,
		"breaker": h.breaker.State(),
	}
	if h.stats != nil {
		hits, misses := h.stats.Snapshot()
		resp["cache"] = map[string]uint64{
			"hits":   hits,
			"misses": misses,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) writeGatewayError(w http.ResponseWriter, r *http.Request, err error) {
	log := middleware.LogWithTrace(r.Context())

	var gerr *gateway.Error
	if !errors.As(err, &gerr) {
		metrics.ErrorsTotal.WithLabelValues("internal").Inc()
		log.Error("Request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error", nil)
		return
	}

	metrics.ErrorsTotal.WithLabelValues(gerr.Kind.String()).Inc()
	switch gerr.Kind {
	case gateway.KindKeyTooShort:
		writeError(w, http.StatusBadRequest, "Filename too short", nil)
	case gateway.KindKeyTooLong:
		writeError(w, http.StatusBadRequest, "Filename too long", nil)
	case gateway.KindUnauthorized:
		writeError(w, http.StatusUnauthorized, "Invalid key", nil)
	case gateway.KindInvalidContent:
		log.Warn("Generation produced invalid content", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusBadRequest, "Invalid SVG content", gerr.Content)
	case gateway.KindUpstream:
		log.Error("Upstream generation failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusBadGateway, "Upstream generation failed", nil)
	case gateway.KindInvalidInput:
		writeError(w, http.StatusBadRequest, "Invalid filename", nil)
	default:
		log.Error("Unhandled gateway error", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error", nil)
	}
}

// svgName returns the still-escaped name from a "<prefix><name>.svg" path.
// Key derivation does the single decode.
func svgName(r *http.Request, prefix string) (string, bool) {
	p := strings.TrimPrefix(r.URL.EscapedPath(), prefix)
	if strings.Contains(p, "/") || !strings.HasSuffix(p, imagecache.FileExt) {
		return "", false
	}
	return strings.TrimSuffix(p, imagecache.FileExt), true
}

func single(values []string) string {
	if len(values) != 1 {
		return ""
	}
	return values[0]
}

func writeError(w http.ResponseWriter, status int, msg string, content *string) {
	writeJSON(w, status, errorResponse{Error: msg, Content: content})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to write JSON response", "error", err)
	}
}
