package api

import (
	"net/http"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/crypto/bcrypt"

	"mcp-project-memory/internal/logging"
)

// requestLogging tags every request with a trace ID and logs the outcome.
func (rt *Router) requestLogging() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			traceID := r.Header.Get("X-Request-ID")
			ctx := logging.WithTraceID(r.Context(), traceID)
			r = r.WithContext(ctx)
			w.Header().Set("X-Request-ID", logging.GetTraceID(ctx))

			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			if r.URL.Path == "/ping" || r.URL.Path == "/health" {
				return
			}
			rt.logger.InfoContext(ctx, "Request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}

// timeoutMiddleware applies a request timeout to everything except the
// websocket endpoint, which holds its connection open.
func (rt *Router) timeoutMiddleware() func(http.Handler) http.Handler {
	timeout := time.Duration(rt.config.Server.WriteTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/ws") {
				next.ServeHTTP(w, r)
				return
			}
			chimiddleware.Timeout(timeout)(next).ServeHTTP(w, r)
		})
	}
}

// corsMiddleware allows browser clients (the web panel, MCP inspectors) to
// call the API from any origin.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key, X-Request-ID")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// apiKeyAuth rejects requests whose X-API-Key header does not match the
// configured bcrypt hash. A router without a configured hash never installs
// this middleware.
func (rt *Router) apiKeyAuth(next http.Handler) http.Handler {
	hash := []byte(rt.config.Auth.APIKeyHash)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-API-Key")
		if key == "" || bcrypt.CompareHashAndPassword(hash, []byte(key)) != nil {
			writeError(w, http.StatusUnauthorized, "invalid or missing API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}
