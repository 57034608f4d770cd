package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	alerthttp "router-supervisor/internal/alerts/interfaces/http"
)

func TestLoggingMiddlewarePreservesFlushForStream(t *testing.T) {
	broker := alerthttp.NewSSEBroker()
	handler := loggingMiddleware(alerthttp.NewStreamHandler(broker), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/alerts/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from stream behind middleware, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "event: ready") {
		t.Fatalf("expected ready frame, got %q", rec.Body.String())
	}
}

func TestStatusWriterFlushWithoutFlusher(t *testing.T) {
	w := &statusWriter{ResponseWriter: nopResponseWriter{}, status: http.StatusOK}
	w.Flush() // must not panic when the wrapped writer cannot flush
}

type nopResponseWriter struct{}

func (nopResponseWriter) Header() http.Header         { return http.Header{} }
func (nopResponseWriter) Write(p []byte) (int, error) { return len(p), nil }
func (nopResponseWriter) WriteHeader(int)             {}
