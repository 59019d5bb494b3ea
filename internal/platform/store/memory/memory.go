// Package memory implements an in-process persistence driver. Data does not
// survive a restart; it backs dev mode and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/gloriousnetworker/dcarbon-portal/internal/platform/store"
)

func init() {
	store.Register("memory", NewDriver)
}

// Driver implements store.Store with maps guarded by a RWMutex.
type Driver struct {
	mu       sync.RWMutex
	sessions map[string]store.Session
	wizards  map[string]store.Wizard
	closed   bool
}

// NewDriver creates a new memory driver instance.
func NewDriver(_ *store.DriverConfig) (store.Store, error) {
	return New(), nil
}

// New returns an initialized, empty driver.
func New() *Driver {
	return &Driver{
		sessions: make(map[string]store.Session),
		wizards:  make(map[string]store.Wizard),
	}
}

// Name returns the driver name.
func (d *Driver) Name() string { return "memory" }

// Init is a no-op.
func (d *Driver) Init(ctx context.Context) error { return nil }

// Close marks the driver closed.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// CreateSession inserts a copy of s.
func (d *Driver) CreateSession(ctx context.Context, s *store.Session) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return store.ErrClosed
	}
	if _, ok := d.sessions[s.ID]; ok {
		return store.ErrAlreadyExists
	}
	d.sessions[s.ID] = *s
	return nil
}

// GetSession returns a copy of the stored session.
func (d *Driver) GetSession(ctx context.Context, id string) (*store.Session, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil, store.ErrClosed
	}
	s, ok := d.sessions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &s, nil
}

// UpdateSession replaces an existing session.
func (d *Driver) UpdateSession(ctx context.Context, s *store.Session) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return store.ErrClosed
	}
	if _, ok := d.sessions[s.ID]; !ok {
		return store.ErrNotFound
	}
	d.sessions[s.ID] = *s
	return nil
}

// DeleteSession removes a session.
func (d *Driver) DeleteSession(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return store.ErrClosed
	}
	if _, ok := d.sessions[id]; !ok {
		return store.ErrNotFound
	}
	delete(d.sessions, id)
	return nil
}

// ListExpiredSessions returns the IDs of sessions expired at now.
func (d *Driver) ListExpiredSessions(ctx context.Context, now int64) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil, store.ErrClosed
	}
	var ids []string
	for id, s := range d.sessions {
		if s.ExpiresAt <= now {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// CreateWizard inserts a copy of w.
func (d *Driver) CreateWizard(ctx context.Context, w *store.Wizard) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return store.ErrClosed
	}
	if _, ok := d.wizards[w.ID]; ok {
		return store.ErrAlreadyExists
	}
	d.wizards[w.ID] = *w
	return nil
}

// GetWizard returns a copy of the stored wizard instance.
func (d *Driver) GetWizard(ctx context.Context, id string) (*store.Wizard, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil, store.ErrClosed
	}
	w, ok := d.wizards[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &w, nil
}

// UpdateWizard replaces an existing wizard instance.
func (d *Driver) UpdateWizard(ctx context.Context, w *store.Wizard) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return store.ErrClosed
	}
	if _, ok := d.wizards[w.ID]; !ok {
		return store.ErrNotFound
	}
	d.wizards[w.ID] = *w
	return nil
}

// ListWizards returns the session's wizard instances, oldest first.
func (d *Driver) ListWizards(ctx context.Context, sessionID string) ([]*store.Wizard, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil, store.ErrClosed
	}
	var out []*store.Wizard
	for _, w := range d.wizards {
		if w.SessionID == sessionID {
			w := w
			out = append(out, &w)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// DeleteWizardsBySession removes every wizard instance of a session.
func (d *Driver) DeleteWizardsBySession(ctx context.Context, sessionID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return store.ErrClosed
	}
	for id, w := range d.wizards {
		if w.SessionID == sessionID {
			delete(d.wizards, id)
		}
	}
	return nil
}

var _ store.Store = (*Driver)(nil)
