// Package ratelimit provides a fixed-window rate limiting middleware over the
// cache subsystem's counters.
package ratelimit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gloriousnetworker/dcarbon-portal/internal/components/api"
	"github.com/gloriousnetworker/dcarbon-portal/internal/platform/cache"
	"github.com/gloriousnetworker/dcarbon-portal/internal/platform/config"
	"github.com/gloriousnetworker/dcarbon-portal/internal/platform/http/middleware"
	"github.com/gloriousnetworker/dcarbon-portal/internal/platform/logutil"
)

// Defaults for an unconfigured limiter.
const (
	DefaultRequestsPerWindow = 10
	DefaultWindowSeconds     = 60
)

// Limiter counts requests per key in fixed windows. A zero limit disables it.
type Limiter struct {
	counter cache.Counter
	scope   string
	keyFunc func(*http.Request) string
	limit   int64
	window  time.Duration
	log     *slog.Logger
}

// New creates a limiter for one scope (for example "login"). Keys default to
// the client IP.
func New(counter cache.Counter, scope string, cfg config.RateLimitConfig, log *slog.Logger) *Limiter {
	window := time.Duration(cfg.WindowSeconds) * time.Second
	if window <= 0 {
		window = DefaultWindowSeconds * time.Second
	}
	return &Limiter{
		counter: counter,
		scope:   scope,
		keyFunc: middleware.ClientIP,
		limit:   cfg.RequestsPerWindow,
		window:  window,
		log:     logutil.NoopIfNil(log),
	}
}

// WithKeyFunc returns a copy of the limiter keyed by fn.
func (l *Limiter) WithKeyFunc(fn func(*http.Request) string) *Limiter {
	c := *l
	c.keyFunc = fn
	return &c
}

// Wrap is the middleware function that applies rate limiting.
func (l *Limiter) Wrap(next http.Handler) http.Handler {
	if l.limit <= 0 || l.counter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := "ratelimit:" + l.scope + ":" + l.keyFunc(r)
		count, err := l.counter.Increment(r.Context(), key, 1, l.window)
		if err != nil {
			// fail open
			l.log.Warn("rate limit check failed", "scope", l.scope, "error", err)
			next.ServeHTTP(w, r)
			return
		}

		if count > l.limit {
			w.Header().Set("Retry-After", strconv.Itoa(int(l.window.Seconds())))
			api.WriteTooManyRequests(w, "too many requests, try again later")
			return
		}

		next.ServeHTTP(w, r)
	})
}
