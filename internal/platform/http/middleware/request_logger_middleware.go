// Package middleware provides always-on transport middleware for the portal HTTP server.
package middleware

import (
	"log/slog"
	"net"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/gloriousnetworker/dcarbon-portal/internal/platform/logutil"
)

// ClientIP returns the host part of the request's remote address.
// Forwarded headers are trusted only when chi's RealIP runs in front of this.
func ClientIP(r *http.Request) string {
	if r.RemoteAddr == "" {
		return "unknown"
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RequestLoggerMiddleware attaches a request-scoped logger to the request context.
//
// Must run after chimw.RequestID so the request ID is populated.
func RequestLoggerMiddleware(base *slog.Logger) func(http.Handler) http.Handler {
	base = logutil.NoopIfNil(base)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqLogger := base.With(
				"request_id", chimw.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path, // path only, query strings may carry emails
				"client_ip", ClientIP(r),
			)
			ctx := logutil.WithLogger(r.Context(), reqLogger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
