package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/gloriousnetworker/dcarbon-portal/internal/components/portalapi"
	"github.com/gloriousnetworker/dcarbon-portal/internal/platform/logutil"
	"github.com/gloriousnetworker/dcarbon-portal/internal/platform/store"
)

// LoginAPI is the remote login call.
type LoginAPI interface {
	Login(ctx context.Context, email, password string) (*portalapi.LoginResult, json.RawMessage, error)
}

// InvalidateFunc is called after a session is removed.
type InvalidateFunc func(ctx context.Context, sessionID string)

// Manager creates, reads, updates and invalidates sessions.
type Manager struct {
	api    LoginAPI
	store  store.SessionStore
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	hooksMu sync.RWMutex
	hooks   []InvalidateFunc
}

// NewManager creates a session manager. ttl caps session lifetime; the remote
// token's exp claim shortens it further.
func NewManager(api LoginAPI, st store.SessionStore, ttl time.Duration, logger *slog.Logger) *Manager {
	return &Manager{
		api:    api,
		store:  st,
		ttl:    ttl,
		logger: logutil.NoopIfNil(logger),
		now:    time.Now,
		locks:  make(map[string]*sync.Mutex),
	}
}

// SetClock replaces the time source.
func (m *Manager) SetClock(now func() time.Time) { m.now = now }

// OnInvalidate registers fn to run after every invalidation.
func (m *Manager) OnInvalidate(fn InvalidateFunc) {
	m.hooksMu.Lock()
	defer m.hooksMu.Unlock()
	m.hooks = append(m.hooks, fn)
}

// Login authenticates against the remote API and persists a new session.
func (m *Manager) Login(ctx context.Context, email, password string) (*Session, error) {
	res, raw, err := m.api.Login(ctx, email, password)
	if err != nil {
		var apiErr *portalapi.APIError
		if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusUnauthorized ||
			apiErr.StatusCode == http.StatusBadRequest || apiErr.StatusCode == http.StatusNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidCredentials, apiErr.Message)
		}
		return nil, err
	}
	if res.Token == "" || res.User.ID == "" {
		return nil, fmt.Errorf("login response missing token or user id")
	}

	now := m.now()
	expiresAt := now.Add(m.ttl)
	if exp, ok := TokenExpiry(res.Token); ok {
		if !exp.After(now) {
			return nil, ErrExpired
		}
		if exp.Before(expiresAt) {
			expiresAt = exp
		}
	}

	s := &Session{
		ID:                uuid.NewString(),
		UserID:            res.User.ID,
		AuthToken:         res.Token,
		Role:              res.User.Role,
		EntityType:        res.User.EntityType,
		Email:             res.User.Email,
		LoginResponse:     raw,
		OwnerReferralCode: res.User.ReferralCode,
		CreatedAt:         now,
		ExpiresAt:         expiresAt,
	}
	if err := m.store.CreateSession(ctx, s.toRecord(now)); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}

	logutil.Ctx(ctx).Info("session created", "user_id", s.UserID, "role", s.Role, "expires_at", s.ExpiresAt)
	return s, nil
}

// TokenExpiry returns the exp claim of a JWT without verifying its signature.
// The remote API verifies tokens; the portal only needs to know when to stop
// using one.
func TokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// Get returns a live session. Expired sessions are removed and reported as ErrExpired.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	rec, err := m.store.GetSession(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	s := fromRecord(rec)
	if s.IsExpired(m.now()) {
		m.Invalidate(ctx, id)
		return nil, ErrExpired
	}
	return s, nil
}

func (m *Manager) lockFor(id string) *sync.Mutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	l, ok := m.locks[id]
	if !ok {
		l = &sync.Mutex{}
		m.locks[id] = l
	}
	return l
}

// Update applies fn to the stored session under a per-session lock and
// persists the result. Identity and expiry fields cannot be changed by fn.
func (m *Manager) Update(ctx context.Context, id string, fn func(*Session) error) (*Session, error) {
	l := m.lockFor(id)
	l.Lock()
	defer l.Unlock()

	s, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	orig := *s
	if err := fn(s); err != nil {
		return nil, err
	}
	s.ID, s.UserID, s.AuthToken = orig.ID, orig.UserID, orig.AuthToken
	s.CreatedAt, s.ExpiresAt = orig.CreatedAt, orig.ExpiresAt

	if err := m.store.UpdateSession(ctx, s.toRecord(m.now())); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s, nil
}

// Invalidate removes a session and runs the invalidation hooks. Removing an
// unknown session is not an error.
func (m *Manager) Invalidate(ctx context.Context, id string) error {
	err := m.store.DeleteSession(ctx, id)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}

	m.locksMu.Lock()
	delete(m.locks, id)
	m.locksMu.Unlock()

	m.hooksMu.RLock()
	hooks := append([]InvalidateFunc(nil), m.hooks...)
	m.hooksMu.RUnlock()
	for _, fn := range hooks {
		fn(ctx, id)
	}

	logutil.Ctx(ctx).Info("session invalidated", "session_id", id)
	return nil
}

// CheckRemote invalidates the session when err says the remote token is no
// longer accepted, and returns ErrExpired wrapping err in that case.
// Any other error is returned unchanged.
func (m *Manager) CheckRemote(ctx context.Context, id string, err error) error {
	if err == nil || !portalapi.IsAuthError(err) {
		return err
	}
	if invErr := m.Invalidate(ctx, id); invErr != nil {
		logutil.Ctx(ctx).Warn("failed to invalidate session", "error", invErr)
	}
	return fmt.Errorf("%w: %w", ErrExpired, err)
}

// RunSweeper invalidates expired sessions every interval until ctx is done.
// Swept sessions go through Invalidate so the hooks run for them too.
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// Sweep invalidates every session expired at the current time and returns
// how many were removed.
func (m *Manager) Sweep(ctx context.Context) int {
	ids, err := m.store.ListExpiredSessions(ctx, m.now().Unix())
	if err != nil {
		m.logger.Warn("session sweep failed", "error", err)
		return 0
	}
	n := 0
	for _, id := range ids {
		if err := m.Invalidate(ctx, id); err != nil {
			m.logger.Warn("failed to invalidate expired session", "session_id", id, "error", err)
			continue
		}
		n++
	}
	if n > 0 {
		m.logger.Debug("expired sessions removed", "count", n)
	}
	return n
}
