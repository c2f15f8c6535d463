package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func TestTraceMiddlewareReusesIncomingID(t *testing.T) {
	var seen string
	h := TraceMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetTraceID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if seen != "req-123" {
		t.Fatalf("trace id=%q want=req-123", seen)
	}
	if got := rec.Header().Get(TraceIDHeader); got != "req-123" {
		t.Fatalf("response header=%q want=req-123", got)
	}
}

func TestTraceMiddlewareGeneratesID(t *testing.T) {
	h := TraceMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if got := rec.Header().Get(TraceIDHeader); len(got) != 32 {
		t.Fatalf("generated trace id=%q want 32 hex chars", got)
	}
}

func TestGetTraceIDWithoutValue(t *testing.T) {
	if got := GetTraceID(context.Background()); got != "" {
		t.Fatalf("GetTraceID=%q want empty", got)
	}
	if LogWithTrace(WithTraceID(context.Background(), "abc")) == nil {
		t.Fatal("expected logger")
	}
}

func TestLoggingMiddlewareRecordsStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /teapot", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	})

	h := LoggingMiddleware(mux)
	inner := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/teapot", nil)
	h.ServeHTTP(inner, req)

	if inner.Code != http.StatusTeapot {
		t.Fatalf("status=%d want=%d", inner.Code, http.StatusTeapot)
	}
	if req.Pattern != "GET /teapot" {
		t.Fatalf("pattern=%q want=GET /teapot", req.Pattern)
	}
}

func TestChainOrder(t *testing.T) {
	var order []string
	mk := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Chain(mk("a"), mk("b"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "final")
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if len(order) != 3 || order[0] != "a" || order[1] != "b" || order[2] != "final" {
		t.Fatalf("order=%v", order)
	}
}

func TestConcurrencyLimiterRejectsWhenFull(t *testing.T) {
	cl := NewConcurrencyLimiter(1, 20*time.Millisecond)
	release := make(chan struct{})
	entered := make(chan struct{})
	slow := cl.Limit(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		slow(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/cat.svg", nil))
	}()
	<-entered

	if cl.Active() != 1 {
		t.Fatalf("Active()=%d want=1", cl.Active())
	}

	rec := httptest.NewRecorder()
	cl.Limit(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run without a slot")
	})(rec, httptest.NewRequest(http.MethodGet, "/api/dog.svg", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d want=503", rec.Code)
	}
	if got := rec.Body.String(); got != "{\"error\":\"Server busy\"}\n" {
		t.Fatalf("body=%q", got)
	}
	if cl.Rejected() != 1 {
		t.Fatalf("Rejected()=%d want=1", cl.Rejected())
	}

	close(release)
	wg.Wait()
	if cl.Active() != 0 {
		t.Fatalf("Active()=%d want=0", cl.Active())
	}
}
