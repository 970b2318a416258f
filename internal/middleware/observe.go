package middleware

import (
	"log/slog"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sa/ottmwiki/internal/metrics"
)

// Observe records every request in the log and the metrics registry.
func Observe(logger *slog.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			elapsed := time.Since(start)

			route := r.URL.Path
			if rctx := chimiddleware.GetReqID(r.Context()); rctx != "" {
				logger.Debug("request",
					"id", rctx,
					"method", r.Method,
					"path", route,
					"status", ww.Status(),
					"elapsed", elapsed,
				)
			} else {
				logger.Debug("request",
					"method", r.Method,
					"path", route,
					"status", ww.Status(),
					"elapsed", elapsed,
				)
			}
			if m != nil {
				m.ObserveRequest(routeLabel(r), ww.Status(), elapsed)
			}
		})
	}
}

// routeLabel collapses page titles so metric cardinality stays bounded.
func routeLabel(r *http.Request) string {
	path := r.URL.Path
	switch {
	case path == "/":
		return "/"
	case len(path) >= 6 && path[:6] == "/wiki/":
		return "/wiki/*"
	case path == "/wiki-api":
		return "/wiki-api"
	case path == "/metrics":
		return "/metrics"
	case path == "/-/health":
		return "/-/health"
	}
	return "other"
}
