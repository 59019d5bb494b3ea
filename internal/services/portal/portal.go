// Package portal provides the /api/* endpoints of the portal.
package portal

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gloriousnetworker/dcarbon-portal/internal/components/api"
	"github.com/gloriousnetworker/dcarbon-portal/internal/components/documents"
	"github.com/gloriousnetworker/dcarbon-portal/internal/components/invitations"
	"github.com/gloriousnetworker/dcarbon-portal/internal/components/portalapi"
	"github.com/gloriousnetworker/dcarbon-portal/internal/components/progress"
	"github.com/gloriousnetworker/dcarbon-portal/internal/components/redemption"
	"github.com/gloriousnetworker/dcarbon-portal/internal/components/reports"
	"github.com/gloriousnetworker/dcarbon-portal/internal/components/session"
	"github.com/gloriousnetworker/dcarbon-portal/internal/components/support"
	"github.com/gloriousnetworker/dcarbon-portal/internal/components/wizard"
	"github.com/gloriousnetworker/dcarbon-portal/internal/platform/http/auth"
	"github.com/gloriousnetworker/dcarbon-portal/internal/platform/logutil"
)

// maxJSONBody bounds JSON request bodies. Signatures travel as data URLs.
const maxJSONBody = 2 << 20

// Sessions is the session manager as the handlers use it.
type Sessions interface {
	Login(ctx context.Context, email, password string) (*session.Session, error)
	Invalidate(ctx context.Context, id string) error
	CheckRemote(ctx context.Context, id string, err error) error
}

// Progress evaluates workflows and drops cached results.
type Progress interface {
	Evaluate(ctx context.Context, wf progress.Workflow, subj progress.Subject) (*progress.Progress, error)
	Invalidate(ctx context.Context, userID string)
}

// Workflows resolves workflow names.
type Workflows interface {
	Lookup(name string) (progress.Workflow, bool)
}

// Wizards runs onboarding wizards.
type Wizards interface {
	Kinds() []wizard.Kind
	Start(ctx context.Context, sess *session.Session, kind wizard.Kind) (*wizard.Instance, error)
	Get(ctx context.Context, sess *session.Session, id string) (*wizard.Instance, error)
	List(ctx context.Context, sess *session.Session) ([]*wizard.Instance, error)
	Fire(ctx context.Context, sess *session.Session, id string, event wizard.Event, payload json.RawMessage) (*wizard.Instance, error)
}

// Facilities is the remote facility API.
type Facilities interface {
	ListFacilities(ctx context.Context, a portalapi.Auth) ([]portalapi.Facility, error)
	GetFacility(ctx context.Context, a portalapi.Auth, facilityID string) (*portalapi.Facility, error)
	DeleteFacility(ctx context.Context, a portalapi.Auth, facilityID string) error
}

// Documents uploads facility documents.
type Documents interface {
	Upload(ctx context.Context, a portalapi.Auth, facilityID string, key documents.Key, filename string, content []byte) (*portalapi.Facility, error)
}

// Reports loads and delivers reports.
type Reports interface {
	Fetch(ctx context.Context, a portalapi.Auth, kind reports.Kind, q reports.Query) (*reports.Result, error)
	Deliver(ctx context.Context, a portalapi.Auth, kind reports.Kind, p reports.Period, email string) (*portalapi.ReportDocument, error)
}

// Points quotes and submits redemptions.
type Points interface {
	Balance(ctx context.Context, a portalapi.Auth) (*portalapi.PointsBalance, error)
	Quote(ctx context.Context, a portalapi.Auth, points int64) (*redemption.Quote, error)
	Redeem(ctx context.Context, a portalapi.Auth, points int64) (*portalapi.Redemption, *redemption.Quote, error)
}

// Invitations sends and resolves invitations.
type Invitations interface {
	Send(ctx context.Context, a portalapi.Auth, f invitations.Form) (*portalapi.Invitation, error)
	List(ctx context.Context, a portalapi.Auth) ([]portalapi.Invitation, error)
	Accept(ctx context.Context, a portalapi.Auth, code string) (*portalapi.Invitation, error)
	Terminate(ctx context.Context, a portalapi.Auth, code string) (*portalapi.Invitation, error)
	AssignInstaller(ctx context.Context, a portalapi.Auth, facilityID, installerID string) (*portalapi.Facility, error)
}

// Support creates tickets and tracks their replies.
type Support interface {
	Create(ctx context.Context, sessionID string, a portalapi.Auth, f support.TicketForm) (*portalapi.Ticket, error)
	Watch(sessionID string, a portalapi.Auth, ticketID string)
	Thread(sessionID, ticketID string) (support.Thread, bool)
	Close()
}

// Deps are the components the endpoints are built on.
type Deps struct {
	Sessions    Sessions
	Progress    Progress
	Workflows   Workflows
	Wizards     Wizards
	Facilities  Facilities
	Documents   Documents
	Reports     Reports
	Points      Points
	Invitations Invitations
	Support     Support

	// LoginLimiter wraps the login route when set.
	LoginLimiter func(http.Handler) http.Handler
}

// Config holds cookie and upload settings.
type Config struct {
	CookieName     string
	CookieSecure   bool
	MaxUploadBytes int64
}

// Service is the portal API service.
type Service struct {
	router chi.Router
	deps   Deps
	conf   Config
	log    *slog.Logger
}

// New creates the portal API service.
func New(d Deps, c Config, log *slog.Logger) *Service {
	if c.CookieName == "" {
		c.CookieName = auth.DefaultCookieName
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = documents.DefaultMaxBytes
	}
	s := &Service{deps: d, conf: c, log: logutil.NoopIfNil(log)}
	s.router = s.routes()
	return s
}

func (s *Service) routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/session", func(r chi.Router) {
		login := http.Handler(http.HandlerFunc(s.login))
		if s.deps.LoginLimiter != nil {
			login = s.deps.LoginLimiter(login)
		}
		r.Method(http.MethodPost, "/login", login)
		r.Post("/logout", s.logout)
		r.Get("/", s.currentSession)
	})

	r.Get("/progress/facility/{facilityID}", s.facilityProgress)
	r.Get("/progress/{workflow}", s.workflowProgress)

	r.Route("/wizards", func(r chi.Router) {
		r.Get("/", s.listWizards)
		r.Post("/", s.startWizard)
		r.Get("/{id}", s.getWizard)
		r.Post("/{id}/events", s.fireWizardEvent)
	})

	r.Get("/documents/catalog", s.documentCatalog)

	r.Route("/facilities", func(r chi.Router) {
		r.Get("/", s.listFacilities)
		r.Get("/{id}", s.getFacility)
		r.Delete("/{id}", s.deleteFacility)
		r.Put("/{id}/documents/{key}", s.uploadDocument)
		r.Post("/{id}/installer", s.assignInstaller)
	})

	r.Get("/reports/{kind}", s.getReport)
	r.Post("/reports/{kind}/email", s.emailReport)

	r.Get("/points", s.pointsBalance)
	r.Get("/points/quote", s.pointsQuote)
	r.Post("/points/redeem", s.redeemPoints)

	r.Route("/invitations", func(r chi.Router) {
		r.Get("/", s.listInvitations)
		r.Post("/", s.sendInvitation)
		r.Post("/accept", s.acceptInvitation)
		r.Post("/{code}/terminate", s.terminateInvitation)
	})

	r.Post("/support/tickets", s.createTicket)
	r.Get("/support/tickets/{id}/replies", s.ticketReplies)

	return r
}

// Prefix implements server.Service.
func (s *Service) Prefix() string { return "api" }

// Handler implements server.Service.
func (s *Service) Handler() http.Handler { return s.router }

// Unprotected implements server.Service.
func (s *Service) Unprotected() []string { return []string{"/session/login"} }

// Close stops background reply polling.
func (s *Service) Close() error {
	if s.deps.Support != nil {
		s.deps.Support.Close()
	}
	return nil
}

// caller returns the session the auth gate resolved. The gate guarantees one
// on every protected route.
func caller(r *http.Request) *session.Session {
	return session.FromContext(r.Context())
}

// fail writes err. Remote auth failures end the session and clear the cookie.
func (s *Service) fail(w http.ResponseWriter, r *http.Request, err error) {
	if sess := caller(r); sess != nil {
		err = s.deps.Sessions.CheckRemote(r.Context(), sess.ID, err)
		if errors.Is(err, session.ErrExpired) {
			s.clearCookie(w)
		}
	}
	api.WriteDomainError(w, r, err)
}

func (s *Service) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.conf.CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.conf.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	api.WriteBadRequest(w, api.ReasonBadRequest, "invalid JSON body")
	return false
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
