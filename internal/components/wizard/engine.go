package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gloriousnetworker/dcarbon-portal/internal/components/portalapi"
	"github.com/gloriousnetworker/dcarbon-portal/internal/components/session"
	"github.com/gloriousnetworker/dcarbon-portal/internal/platform/logutil"
	"github.com/gloriousnetworker/dcarbon-portal/internal/platform/store"
)

var (
	ErrNotFound          = errors.New("wizard not found")
	ErrUnknownKind       = errors.New("unknown wizard kind")
	ErrInvalidTransition = errors.New("invalid transition")
)

// API is the part of the remote client the wizard actions call.
type API interface {
	RegisterCommercial(ctx context.Context, a portalapi.Auth, reg portalapi.CommercialRegistration) (*portalapi.User, error)
	RegisterPartner(ctx context.Context, a portalapi.Auth, reg portalapi.PartnerRegistration) (*portalapi.User, error)
	ValidateReferralCode(ctx context.Context, a portalapi.Auth, code string) (*portalapi.ReferralValidation, json.RawMessage, error)
	UploadSignature(ctx context.Context, a portalapi.Auth, sig portalapi.File) error
	AcceptAgreement(ctx context.Context, a portalapi.Auth) error
	CreateResidentialFacility(ctx context.Context, a portalapi.Auth, in portalapi.FacilityInput) (*portalapi.Facility, error)
	CreateCommercialFacility(ctx context.Context, a portalapi.Auth, in portalapi.FacilityInput) (*portalapi.Facility, error)
	ListFacilities(ctx context.Context, a portalapi.Auth) ([]portalapi.Facility, error)
}

// Sessions updates the owning session.
type Sessions interface {
	Update(ctx context.Context, id string, fn func(*session.Session) error) (*session.Session, error)
}

// Invalidator drops cached progress for a user.
type Invalidator interface {
	Invalidate(ctx context.Context, userID string)
}

// Instance is a running wizard.
type Instance struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Kind      Kind      `json:"kind"`
	State     State     `json:"state"`
	Data      Data      `json:"data"`
	LastError string    `json:"last_error,omitempty"`
	Events    []Event   `json:"events"`
	Done      bool      `json:"done"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Engine starts wizards and fires events on them.
type Engine struct {
	api      API
	store    store.WizardStore
	sessions Sessions
	progress Invalidator
	utility  UtilityAuth
	logger   *slog.Logger
	now      func() time.Time
	defs     map[Kind]*Definition

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// Options holds the optional engine collaborators.
type Options struct {
	Sessions    Sessions
	Progress    Invalidator
	UtilityAuth UtilityAuth
	Logger      *slog.Logger
}

// NewEngine creates an engine. It fails when a definition is malformed.
func NewEngine(api API, st store.WizardStore, opts Options) (*Engine, error) {
	e := &Engine{
		api:      api,
		store:    st,
		sessions: opts.Sessions,
		progress: opts.Progress,
		utility:  opts.UtilityAuth,
		logger:   logutil.NoopIfNil(opts.Logger),
		now:      time.Now,
		locks:    make(map[string]*sync.Mutex),
	}
	e.defs = e.definitions()
	for _, d := range e.defs {
		if err := d.Validate(); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Kinds returns the wizard kinds, sorted.
func (e *Engine) Kinds() []Kind {
	out := make([]Kind, 0, len(e.defs))
	for k := range e.defs {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Definition returns the definition of kind.
func (e *Engine) Definition(kind Kind) (*Definition, bool) {
	d, ok := e.defs[kind]
	return d, ok
}

// Start creates a wizard of kind for the session. Starting a wizard marks
// the dashboard as visited so the welcome step is shown once.
func (e *Engine) Start(ctx context.Context, sess *session.Session, kind Kind) (*Instance, error) {
	def, ok := e.defs[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	now := e.now()
	inst := &Instance{
		ID:        uuid.NewString(),
		SessionID: sess.ID,
		Kind:      kind,
		State:     def.Initial,
		CreatedAt: now,
		UpdatedAt: now,
	}
	rec, err := toRecord(inst)
	if err != nil {
		return nil, err
	}
	if err := e.store.CreateWizard(ctx, rec); err != nil {
		return nil, fmt.Errorf("create wizard: %w", err)
	}
	if e.sessions != nil && !sess.HasVisitedDashboard {
		if _, err := e.sessions.Update(ctx, sess.ID, func(s *session.Session) error {
			s.HasVisitedDashboard = true
			return nil
		}); err != nil {
			logutil.Ctx(ctx).Warn("failed to mark dashboard visited", "error", err)
		}
	}
	logutil.Ctx(ctx).Info("wizard started", "wizard_id", inst.ID, "kind", kind)
	return e.describe(def, inst), nil
}

// Get returns a wizard owned by the session.
func (e *Engine) Get(ctx context.Context, sess *session.Session, id string) (*Instance, error) {
	inst, def, err := e.load(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	return e.describe(def, inst), nil
}

// List returns the session's wizards, oldest first.
func (e *Engine) List(ctx context.Context, sess *session.Session) ([]*Instance, error) {
	recs, err := e.store.ListWizards(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	out := make([]*Instance, 0, len(recs))
	for _, r := range recs {
		inst, err := fromRecord(r)
		if err != nil {
			return nil, err
		}
		if def, ok := e.defs[inst.Kind]; ok {
			out = append(out, e.describe(def, inst))
		}
	}
	return out, nil
}

// Fire applies event to a wizard. A disallowed event fails with
// ErrInvalidTransition. A guard failure is returned before any remote call.
// An action failure leaves the wizard in its current state with LastError
// set; the error is returned.
func (e *Engine) Fire(ctx context.Context, sess *session.Session, id string, event Event, payload json.RawMessage) (*Instance, error) {
	mu := e.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	inst, def, err := e.load(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	tr, ok := def.Transitions[inst.State][event]
	if !ok {
		return nil, fmt.Errorf("%w: %s does not accept %q in state %s", ErrInvalidTransition, inst.Kind, event, inst.State)
	}

	run := &Run{Session: sess, Payload: payload, Data: inst.Data}
	if tr.Guard != nil {
		if err := tr.Guard(run); err != nil {
			return nil, err
		}
	}
	if tr.Action != nil {
		if err := tr.Action(ctx, run); err != nil {
			inst.LastError = errorMessage(err)
			inst.UpdatedAt = e.now()
			if perr := e.save(ctx, inst); perr != nil {
				logutil.Ctx(ctx).Warn("failed to record wizard error", "wizard_id", id, "error", perr)
			}
			logutil.Ctx(ctx).Info("wizard step failed", "wizard_id", id, "state", inst.State, "event", event, "error", err)
			return nil, err
		}
	}

	from := inst.State
	inst.State = tr.To
	inst.Data = run.Data
	inst.LastError = ""
	inst.UpdatedAt = e.now()
	if err := e.save(ctx, inst); err != nil {
		return nil, err
	}
	if e.progress != nil {
		e.progress.Invalidate(ctx, sess.UserID)
	}
	logutil.Ctx(ctx).Info("wizard transition", "wizard_id", id, "kind", inst.Kind, "from", from, "to", inst.State, "event", event)
	return e.describe(def, inst), nil
}

func (e *Engine) load(ctx context.Context, sess *session.Session, id string) (*Instance, *Definition, error) {
	rec, err := e.store.GetWizard(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	if rec.SessionID != sess.ID {
		return nil, nil, ErrNotFound
	}
	inst, err := fromRecord(rec)
	if err != nil {
		return nil, nil, err
	}
	def, ok := e.defs[inst.Kind]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownKind, inst.Kind)
	}
	return inst, def, nil
}

func (e *Engine) save(ctx context.Context, inst *Instance) error {
	rec, err := toRecord(inst)
	if err != nil {
		return err
	}
	return e.store.UpdateWizard(ctx, rec)
}

func (e *Engine) describe(def *Definition, inst *Instance) *Instance {
	inst.Events = def.Events(inst.State)
	inst.Done = def.IsTerminal(inst.State)
	return inst
}

func (e *Engine) lockFor(id string) *sync.Mutex {
	e.locksMu.Lock()
	defer e.locksMu.Unlock()
	mu, ok := e.locks[id]
	if !ok {
		mu = &sync.Mutex{}
		e.locks[id] = mu
	}
	return mu
}

// Forget drops the locks of a session's wizards and deletes them.
func (e *Engine) Forget(ctx context.Context, sessionID string) error {
	recs, err := e.store.ListWizards(ctx, sessionID)
	if err != nil {
		return err
	}
	e.locksMu.Lock()
	for _, r := range recs {
		delete(e.locks, r.ID)
	}
	e.locksMu.Unlock()
	return e.store.DeleteWizardsBySession(ctx, sessionID)
}

func (e *Engine) updateSession(ctx context.Context, r *Run, fn func(*session.Session) error) error {
	if e.sessions == nil {
		return nil
	}
	s, err := e.sessions.Update(ctx, r.Session.ID, fn)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	r.Session = s
	return nil
}

func errorMessage(err error) string {
	var apiErr *portalapi.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}

func toRecord(inst *Instance) (*store.Wizard, error) {
	data, err := json.Marshal(inst.Data)
	if err != nil {
		return nil, fmt.Errorf("encode wizard data: %w", err)
	}
	return &store.Wizard{
		ID:        inst.ID,
		SessionID: inst.SessionID,
		Kind:      string(inst.Kind),
		State:     string(inst.State),
		Data:      store.JSON(data),
		LastError: inst.LastError,
		CreatedAt: inst.CreatedAt.Unix(),
		UpdatedAt: inst.UpdatedAt.Unix(),
	}, nil
}

func fromRecord(r *store.Wizard) (*Instance, error) {
	inst := &Instance{
		ID:        r.ID,
		SessionID: r.SessionID,
		Kind:      Kind(r.Kind),
		State:     State(r.State),
		LastError: r.LastError,
		CreatedAt: time.Unix(r.CreatedAt, 0),
		UpdatedAt: time.Unix(r.UpdatedAt, 0),
	}
	if len(r.Data) > 0 && string(r.Data) != "null" {
		if err := json.Unmarshal(r.Data, &inst.Data); err != nil {
			return nil, fmt.Errorf("decode wizard data: %w", err)
		}
	}
	return inst, nil
}
