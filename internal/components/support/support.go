// Package support opens contact-support tickets and polls for replies.
package support

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/gloriousnetworker/dcarbon-portal/internal/components/portalapi"
	"github.com/gloriousnetworker/dcarbon-portal/internal/components/validate"
	"github.com/gloriousnetworker/dcarbon-portal/internal/platform/cache"
	"github.com/gloriousnetworker/dcarbon-portal/internal/platform/logutil"
)

// DefaultInterval is the reply polling interval.
const DefaultInterval = 30 * time.Second

const cursorTTL = 24 * time.Hour

// API is the part of the remote client support uses.
type API interface {
	CreateTicket(ctx context.Context, a portalapi.Auth, req portalapi.TicketRequest) (*portalapi.Ticket, error)
	TicketReplies(ctx context.Context, a portalapi.Auth, ticketID string, since time.Time) ([]portalapi.Reply, error)
}

// TicketForm opens a ticket.
type TicketForm struct {
	Subject  string `json:"subject" validate:"required,max=200"`
	Message  string `json:"message" validate:"required,max=5000"`
	Category string `json:"category" validate:"omitempty,oneof=general billing technical documents account"`
}

// Thread is what the poller has seen of one ticket.
type Thread struct {
	TicketID  string            `json:"ticket_id"`
	Replies   []portalapi.Reply `json:"replies"`
	PolledAt  time.Time         `json:"polled_at"`
	LastError string            `json:"last_error,omitempty"`
	Active    bool              `json:"active"`
}

type watch struct {
	cancel context.CancelFunc
	auth   portalapi.Auth

	mu     sync.Mutex
	thread Thread
	seen   map[string]bool
	since  time.Time
}

// Poller polls ticket replies at a fixed interval, one goroutine per
// watched ticket, until the owning session ends.
type Poller struct {
	api      API
	cursors  cache.Cache
	interval time.Duration
	logger   *slog.Logger

	root   context.Context
	stop   context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
	// session ID -> ticket ID -> watch
	watches map[string]map[string]*watch
}

// NewPoller creates a poller. cursors may be nil; when set, the newest
// reply time per ticket is kept there so a new watch does not refetch.
func NewPoller(api API, cursors cache.Cache, interval time.Duration, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	root, stop := context.WithCancel(context.Background())
	return &Poller{
		api:      api,
		cursors:  cursors,
		interval: interval,
		logger:   logutil.NoopIfNil(logger),
		root:     root,
		stop:     stop,
		watches:  make(map[string]map[string]*watch),
	}
}

// Create validates and opens a ticket, then starts watching it.
func (p *Poller) Create(ctx context.Context, sessionID string, a portalapi.Auth, f TicketForm) (*portalapi.Ticket, error) {
	if err := validate.Struct(f); err != nil {
		return nil, err
	}
	t, err := p.api.CreateTicket(ctx, a, portalapi.TicketRequest{Subject: f.Subject, Message: f.Message, Category: f.Category})
	if err != nil {
		return nil, err
	}
	logutil.Ctx(ctx).Info("support ticket created", "ticket_id", t.ID)
	p.Watch(sessionID, a, t.ID)
	return t, nil
}

// Watch starts polling ticketID for the session. Watching a ticket twice is a no-op.
func (p *Poller) Watch(sessionID string, a portalapi.Auth, ticketID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	byTicket, ok := p.watches[sessionID]
	if !ok {
		byTicket = make(map[string]*watch)
		p.watches[sessionID] = byTicket
	}
	if _, ok := byTicket[ticketID]; ok {
		return
	}
	ctx, cancel := context.WithCancel(p.root)
	w := &watch{
		cancel: cancel,
		auth:   a,
		thread: Thread{TicketID: ticketID, Replies: []portalapi.Reply{}, Active: true},
		seen:   make(map[string]bool),
		since:  p.loadCursor(ctx, ticketID),
	}
	byTicket[ticketID] = w

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.run(ctx, w)
	}()
}

// Thread returns what has been seen of a ticket the session watches.
func (p *Poller) Thread(sessionID, ticketID string) (Thread, bool) {
	p.mu.Lock()
	w, ok := p.watches[sessionID][ticketID]
	p.mu.Unlock()
	if !ok {
		return Thread{}, false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	t := w.thread
	t.Replies = append([]portalapi.Reply(nil), w.thread.Replies...)
	return t, true
}

// StopSession cancels every watch of the session.
func (p *Poller) StopSession(_ context.Context, sessionID string) {
	p.mu.Lock()
	byTicket := p.watches[sessionID]
	delete(p.watches, sessionID)
	p.mu.Unlock()
	for _, w := range byTicket {
		w.cancel()
	}
}

// Close cancels every watch and waits for the polling goroutines to exit.
func (p *Poller) Close() {
	p.mu.Lock()
	p.closed = true
	p.watches = make(map[string]map[string]*watch)
	p.mu.Unlock()
	p.stop()
	p.wg.Wait()
}

func (p *Poller) run(ctx context.Context, w *watch) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	defer func() {
		w.mu.Lock()
		w.thread.Active = false
		w.mu.Unlock()
	}()

	for {
		if !p.poll(ctx, w) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// poll fetches new replies once. It returns false when polling should stop.
func (p *Poller) poll(ctx context.Context, w *watch) bool {
	w.mu.Lock()
	since := w.since
	ticketID := w.thread.TicketID
	w.mu.Unlock()

	replies, err := p.api.TicketReplies(ctx, w.auth, ticketID, since)
	if ctx.Err() != nil {
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.thread.PolledAt = time.Now()
	if err != nil {
		w.thread.LastError = err.Error()
		if portalapi.IsAuthError(err) {
			p.logger.Info("support polling stopped, token rejected", "ticket_id", ticketID)
			return false
		}
		p.logger.Debug("support poll failed", "ticket_id", ticketID, "error", err)
		return true
	}
	w.thread.LastError = ""

	added := false
	for _, r := range replies {
		if r.ID != "" && w.seen[r.ID] {
			continue
		}
		w.seen[r.ID] = true
		w.thread.Replies = append(w.thread.Replies, r)
		if r.CreatedAt.After(w.since) {
			w.since = r.CreatedAt
		}
		added = true
	}
	if added {
		sort.SliceStable(w.thread.Replies, func(i, j int) bool {
			return w.thread.Replies[i].CreatedAt.Before(w.thread.Replies[j].CreatedAt)
		})
		p.storeCursor(ctx, ticketID, w.since)
	}
	return true
}

func cursorKey(ticketID string) string { return "support-cursor:" + ticketID }

func (p *Poller) loadCursor(ctx context.Context, ticketID string) time.Time {
	if p.cursors == nil {
		return time.Time{}
	}
	b, err := p.cursors.Get(ctx, cursorKey(ticketID))
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) && !errors.Is(err, cache.ErrExpired) {
			p.logger.Warn("support cursor read failed", "error", err)
		}
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, string(b))
	if err != nil {
		return time.Time{}
	}
	return t
}

func (p *Poller) storeCursor(ctx context.Context, ticketID string, t time.Time) {
	if p.cursors == nil {
		return
	}
	if err := p.cursors.Set(ctx, cursorKey(ticketID), []byte(t.UTC().Format(time.RFC3339Nano)), cursorTTL); err != nil {
		p.logger.Warn("support cursor write failed", "error", err)
	}
}
