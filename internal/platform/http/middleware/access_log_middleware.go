package middleware

import (
	"log/slog"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/gloriousnetworker/dcarbon-portal/internal/platform/logutil"
)

// AccessLogMiddleware writes one "request" line per request with the response
// status, size and duration. Base fields come from the context logger set by
// RequestLoggerMiddleware; log is the fallback when that logger is missing.
func AccessLogMiddleware(log *slog.Logger) func(http.Handler) http.Handler {
	log = logutil.NoopIfNil(log)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				logger, ok := logutil.FromContext(r.Context())
				if !ok {
					logger = log.With(
						"request_id", chimw.GetReqID(r.Context()),
						"method", r.Method,
						"path", r.URL.Path,
						"client_ip", ClientIP(r),
					)
				}
				// Base fields are already attached; only response fields here.
				logger.Info("request",
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration_ms", time.Since(start).Milliseconds(),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
