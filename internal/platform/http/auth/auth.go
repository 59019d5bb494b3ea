// Package auth provides the session auth gate for the portal HTTP server.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gloriousnetworker/dcarbon-portal/internal/components/api"
	"github.com/gloriousnetworker/dcarbon-portal/internal/components/session"
	"github.com/gloriousnetworker/dcarbon-portal/internal/platform/logutil"
)

// DefaultCookieName carries the session ID when no cookie name is configured.
const DefaultCookieName = "portal_session"

// SessionSource looks up sessions by ID.
type SessionSource interface {
	Get(ctx context.Context, id string) (*session.Session, error)
}

// AuthGateConfig configures the session auth gate middleware.
type AuthGateConfig struct {
	// RequireAuth returns true if the given path requires a session.
	RequireAuth func(path string) bool

	// Log is the base logger for lookup failures.
	Log *slog.Logger

	// Sessions resolves session IDs. May be nil only if RequireAuth always
	// returns false (tests only).
	Sessions SessionSource

	// CookieName is the session cookie. Empty means DefaultCookieName.
	CookieName string
}

// NewAuthGate returns a middleware that resolves the caller's session and puts
// it in the request context. Paths for which RequireAuth returns false pass
// through untouched.
func NewAuthGate(cfg AuthGateConfig) func(http.Handler) http.Handler {
	cfg.Log = logutil.NoopIfNil(cfg.Log)
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.RequireAuth(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			id := SessionID(r, cfg.CookieName)
			if id == "" {
				api.WriteUnauthorized(w, api.ReasonUnauthenticated, "authentication required")
				return
			}

			sess, err := cfg.Sessions.Get(r.Context(), id)
			switch {
			case errors.Is(err, session.ErrNotFound), errors.Is(err, session.ErrExpired):
				api.WriteUnauthorized(w, api.ReasonSessionExpired, "session expired, please sign in again")
				return
			case err != nil:
				cfg.Log.Error("session lookup failed", "error", err)
				api.WriteInternalError(w, "session lookup failed")
				return
			}

			ctx := session.WithSession(r.Context(), sess)
			reqLogger := logutil.Ctx(ctx).With("user_id", sess.UserID)
			ctx = logutil.WithLogger(ctx, reqLogger)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionID gets the session ID from the cookie or a Bearer Authorization header.
func SessionID(r *http.Request, cookieName string) string {
	if cookie, err := r.Cookie(cookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}
