package handler

import (
	"net/http"

	"svgcache-api/internal/middleware"
)

// Register mounts the public routes on mux. Generate routes go through
// limiter when it is non-nil.
func (h *Handler) Register(mux *http.ServeMux, limiter *middleware.ConcurrencyLimiter) {
	generate, generatePath := h.HandleGenerate, h.HandleGeneratePath
	if limiter != nil {
		generate = limiter.Limit(generate)
		generatePath = limiter.Limit(generatePath)
	}

	mux.HandleFunc("GET /{$}", h.HandleIndex)
	mux.HandleFunc("GET /health", h.HandleHealth)
	mux.HandleFunc("GET /api/generate", generate)
	mux.HandleFunc("GET /api/{file}", generatePath)
	mux.HandleFunc("GET /{file}", h.HandleFile)
}
