package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gloriousnetworker/dcarbon-portal/internal/components/api"
	"github.com/gloriousnetworker/dcarbon-portal/internal/components/documents"
	"github.com/gloriousnetworker/dcarbon-portal/internal/components/invitations"
	"github.com/gloriousnetworker/dcarbon-portal/internal/components/portalapi"
	"github.com/gloriousnetworker/dcarbon-portal/internal/components/progress"
	"github.com/gloriousnetworker/dcarbon-portal/internal/components/redemption"
	"github.com/gloriousnetworker/dcarbon-portal/internal/components/reports"
	"github.com/gloriousnetworker/dcarbon-portal/internal/components/session"
	"github.com/gloriousnetworker/dcarbon-portal/internal/components/support"
	"github.com/gloriousnetworker/dcarbon-portal/internal/components/validate"
	"github.com/gloriousnetworker/dcarbon-portal/internal/components/wizard"
)

// fakes

type fakeSessions struct {
	mu          sync.Mutex
	login       *session.Session
	loginErr    error
	invalidated []string
}

func (f *fakeSessions) Login(_ context.Context, email, password string) (*session.Session, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return f.login, nil
}

func (f *fakeSessions) Invalidate(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, id)
	return nil
}

func (f *fakeSessions) CheckRemote(ctx context.Context, id string, err error) error {
	if !portalapi.IsAuthError(err) {
		return err
	}
	f.Invalidate(ctx, id)
	return fmt.Errorf("%w: %w", session.ErrExpired, err)
}

type fakeProgress struct {
	evaluated   []string
	invalidated []string
}

func (f *fakeProgress) Evaluate(_ context.Context, wf progress.Workflow, subj progress.Subject) (*progress.Progress, error) {
	f.evaluated = append(f.evaluated, wf.Name+"|"+subj.FacilityID)
	return &progress.Progress{Workflow: wf.Name, CurrentStage: 1, TotalStages: len(wf.Stages)}, nil
}

func (f *fakeProgress) Invalidate(_ context.Context, userID string) {
	f.invalidated = append(f.invalidated, userID)
}

type fakeWorkflows map[string]progress.Workflow

func (f fakeWorkflows) Lookup(name string) (progress.Workflow, bool) {
	wf, ok := f[name]
	return wf, ok
}

type fakeWizards struct {
	inst    *wizard.Instance
	fireErr error
	fired   []wizard.Event
	payload json.RawMessage
}

func (f *fakeWizards) Kinds() []wizard.Kind { return []wizard.Kind{"operator"} }

func (f *fakeWizards) Start(_ context.Context, _ *session.Session, kind wizard.Kind) (*wizard.Instance, error) {
	if kind != "operator" {
		return nil, fmt.Errorf("%w: %q", wizard.ErrUnknownKind, kind)
	}
	return f.inst, nil
}

func (f *fakeWizards) Get(_ context.Context, _ *session.Session, id string) (*wizard.Instance, error) {
	if f.inst == nil || id != f.inst.ID {
		return nil, wizard.ErrNotFound
	}
	return f.inst, nil
}

func (f *fakeWizards) List(context.Context, *session.Session) ([]*wizard.Instance, error) {
	return []*wizard.Instance{f.inst}, nil
}

func (f *fakeWizards) Fire(_ context.Context, _ *session.Session, id string, ev wizard.Event, payload json.RawMessage) (*wizard.Instance, error) {
	f.fired = append(f.fired, ev)
	f.payload = payload
	if f.fireErr != nil {
		return nil, f.fireErr
	}
	return f.inst, nil
}

type fakeFacilities struct {
	facility *portalapi.Facility
	err      error
	deleted  []string
}

func (f *fakeFacilities) ListFacilities(context.Context, portalapi.Auth) ([]portalapi.Facility, error) {
	if f.err != nil {
		return nil, f.err
	}
	return nil, nil
}

func (f *fakeFacilities) GetFacility(_ context.Context, _ portalapi.Auth, id string) (*portalapi.Facility, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.facility, nil
}

func (f *fakeFacilities) DeleteFacility(_ context.Context, _ portalapi.Auth, id string) error {
	f.deleted = append(f.deleted, id)
	return f.err
}

type fakeDocuments struct {
	key      documents.Key
	filename string
	content  []byte
	facility *portalapi.Facility
}

func (f *fakeDocuments) Upload(_ context.Context, _ portalapi.Auth, _ string, key documents.Key, filename string, content []byte) (*portalapi.Facility, error) {
	f.key, f.filename, f.content = key, filename, content
	return f.facility, nil
}

type fakeReports struct {
	result    *reports.Result
	delivered []string
}

func (f *fakeReports) Fetch(_ context.Context, _ portalapi.Auth, kind reports.Kind, q reports.Query) (*reports.Result, error) {
	res := *f.result
	res.Kind, res.Period = kind, q.Period
	return &res, nil
}

func (f *fakeReports) Deliver(_ context.Context, _ portalapi.Auth, kind reports.Kind, p reports.Period, email string) (*portalapi.ReportDocument, error) {
	if email != "" && !validate.Email(email) {
		return nil, validate.Field("email", "must be a valid email address")
	}
	f.delivered = append(f.delivered, string(kind)+"|"+p.String()+"|"+email)
	return &portalapi.ReportDocument{URL: "https://files.example.test/r.pdf"}, nil
}

type fakePoints struct{}

func (fakePoints) Balance(context.Context, portalapi.Auth) (*portalapi.PointsBalance, error) {
	return &portalapi.PointsBalance{Available: 5000, CommissionRate: 0.5}, nil
}

func (fakePoints) Quote(_ context.Context, _ portalapi.Auth, points int64) (*redemption.Quote, error) {
	if err := redemption.Validate(points, 5000, redemption.DefaultMinimumPoints); err != nil {
		return nil, err
	}
	cents := redemption.AmountCents(points, 1, 0.5)
	return &redemption.Quote{Points: points, AmountCents: cents, Amount: redemption.FormatCents(cents)}, nil
}

func (p fakePoints) Redeem(ctx context.Context, a portalapi.Auth, points int64) (*portalapi.Redemption, *redemption.Quote, error) {
	q, err := p.Quote(ctx, a, points)
	if err != nil {
		return nil, nil, err
	}
	return &portalapi.Redemption{ID: "red-1", Points: points, AmountCents: q.AmountCents}, q, nil
}

type fakeInvitations struct {
	sent     []invitations.Form
	accepted []string
}

func (f *fakeInvitations) Send(_ context.Context, _ portalapi.Auth, form invitations.Form) (*portalapi.Invitation, error) {
	if err := form.Check(); err != nil {
		return nil, err
	}
	f.sent = append(f.sent, form)
	return &portalapi.Invitation{InviteeEmail: form.InviteeEmail, Role: form.Role, Status: "PENDING"}, nil
}

func (f *fakeInvitations) List(context.Context, portalapi.Auth) ([]portalapi.Invitation, error) {
	return nil, nil
}

func (f *fakeInvitations) Accept(_ context.Context, _ portalapi.Auth, code string) (*portalapi.Invitation, error) {
	if code != "REF-1" {
		return nil, invitations.ErrNotFound
	}
	f.accepted = append(f.accepted, code)
	return &portalapi.Invitation{ReferralCode: code, Status: "ACCEPTED"}, nil
}

func (f *fakeInvitations) Terminate(_ context.Context, _ portalapi.Auth, code string) (*portalapi.Invitation, error) {
	return nil, invitations.ErrFinal
}

func (f *fakeInvitations) AssignInstaller(_ context.Context, _ portalapi.Auth, facilityID, installerID string) (*portalapi.Facility, error) {
	return &portalapi.Facility{ID: facilityID, InstallerID: installerID}, nil
}

type fakeSupport struct {
	watched []string
	closed  bool
}

func (f *fakeSupport) Create(_ context.Context, sessionID string, _ portalapi.Auth, form support.TicketForm) (*portalapi.Ticket, error) {
	if strings.TrimSpace(form.Subject) == "" {
		return nil, validate.Field("subject", "is required")
	}
	f.watched = append(f.watched, "t-1")
	return &portalapi.Ticket{ID: "t-1", Subject: form.Subject}, nil
}

func (f *fakeSupport) Watch(_ string, _ portalapi.Auth, ticketID string) {
	f.watched = append(f.watched, ticketID)
}

func (f *fakeSupport) Thread(_, ticketID string) (support.Thread, bool) {
	for _, w := range f.watched {
		if w == ticketID {
			return support.Thread{TicketID: ticketID, Active: true}, true
		}
	}
	return support.Thread{}, false
}

func (f *fakeSupport) Close() { f.closed = true }

// harness

type harness struct {
	svc         *Service
	sess        *session.Session
	sessions    *fakeSessions
	progress    *fakeProgress
	wizards     *fakeWizards
	facilities  *fakeFacilities
	documents   *fakeDocuments
	reports     *fakeReports
	invitations *fakeInvitations
	support     *fakeSupport
}

func newHarness() *harness {
	sess := &session.Session{
		ID: "sess-1", UserID: "user-1", AuthToken: "remote-secret-token", Role: portalapi.RoleOwner,
		EntityType: "COMMERCIAL", Email: "owner@example.test",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	h := &harness{
		sess:       sess,
		sessions:   &fakeSessions{login: sess},
		progress:   &fakeProgress{},
		wizards:    &fakeWizards{inst: &wizard.Instance{ID: "wiz-1", Kind: "operator", State: "welcome"}},
		facilities: &fakeFacilities{facility: &portalapi.Facility{ID: "fac-1"}},
		documents:  &fakeDocuments{facility: &portalapi.Facility{ID: "fac-1"}},
		reports: &fakeReports{result: &reports.Result{Table: reports.Table{
			Title:   "Customers",
			Columns: []string{"Name", "Email"},
			Rows:    [][]any{{"Ada", "ada@example.test"}, {"Lin", "lin@example.test"}},
		}}},
		invitations: &fakeInvitations{},
		support:     &fakeSupport{},
	}
	workflows := fakeWorkflows{
		progress.OwnerOnboarding:    {Name: progress.OwnerOnboarding},
		progress.OperatorOnboarding: {Name: progress.OperatorOnboarding},
		progress.FacilityLifecycle:  {Name: progress.FacilityLifecycle},
	}
	h.svc = New(Deps{
		Sessions:    h.sessions,
		Progress:    h.progress,
		Workflows:   workflows,
		Wizards:     h.wizards,
		Facilities:  h.facilities,
		Documents:   h.documents,
		Reports:     h.reports,
		Points:      fakePoints{},
		Invitations: h.invitations,
		Support:     h.support,
	}, Config{CookieName: "sid", MaxUploadBytes: 1 << 20}, nil)
	return h
}

// do serves a request as the harness session. Paths are relative to /api.
func (h *harness) do(method, path string, body any) *httptest.ResponseRecorder {
	var rd *bytes.Reader
	switch b := body.(type) {
	case nil:
		rd = bytes.NewReader(nil)
	case string:
		rd = bytes.NewReader([]byte(b))
	default:
		raw, _ := json.Marshal(b)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	req = req.WithContext(session.WithSession(req.Context(), h.sess))
	rr := httptest.NewRecorder()
	h.svc.Handler().ServeHTTP(rr, req)
	return rr
}

func envelope(t *testing.T, rr *httptest.ResponseRecorder) api.ErrorDetail {
	t.Helper()
	var env api.ErrorEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	return env.Error
}

func TestLogin_SetsCookieAndDescribesSession(t *testing.T) {
	h := newHarness()
	req := httptest.NewRequest(http.MethodPost, "/session/login", strings.NewReader(`{"email":" owner@example.test ","password":"pw"}`))
	rr := httptest.NewRecorder()
	h.svc.Handler().ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "sid", cookies[0].Name)
	assert.Equal(t, "sess-1", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "user-1", body["user_id"])
	assert.Equal(t, progress.OwnerOnboarding, body["workflow"])
	assert.NotContains(t, rr.Body.String(), "remote-secret-token", "remote token must not leak")
}

func TestLogin_Failures(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		loginErr error
		status   int
		reason   string
	}{
		{"malformed body", `{`, nil, http.StatusBadRequest, api.ReasonBadRequest},
		{"missing password", `{"email":"a@b.test"}`, nil, http.StatusBadRequest, api.ReasonValidationFailed},
		{"bad email", `{"email":"nope","password":"x"}`, nil, http.StatusBadRequest, api.ReasonValidationFailed},
		{"rejected", `{"email":"a@b.test","password":"x"}`, session.ErrInvalidCredentials, http.StatusUnauthorized, api.ReasonInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			h.sessions.loginErr = tt.loginErr
			rr := httptest.NewRecorder()
			h.svc.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/session/login", strings.NewReader(tt.body)))

			assert.Equal(t, tt.status, rr.Code)
			assert.Equal(t, tt.reason, envelope(t, rr).ReasonCode)
			assert.Empty(t, rr.Result().Cookies())
		})
	}
}

func TestLogin_LimiterWrapsOnlyLogin(t *testing.T) {
	h := newHarness()
	blocked := func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			api.WriteTooManyRequests(w, "too many requests")
		})
	}
	h.svc = New(Deps{Sessions: h.sessions, LoginLimiter: blocked}, Config{}, nil)

	rr := httptest.NewRecorder()
	h.svc.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/session/login", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)

	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/session/", nil).Code)
}

func TestLogout_InvalidatesAndClearsCookie(t *testing.T) {
	h := newHarness()
	rr := h.do(http.MethodPost, "/session/logout", nil)

	require.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, []string{"sess-1"}, h.sessions.invalidated)
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

func TestRemoteAuthFailure_EndsSession(t *testing.T) {
	h := newHarness()
	h.facilities.err = &portalapi.APIError{StatusCode: http.StatusUnauthorized, Message: "jwt expired"}

	rr := h.do(http.MethodGet, "/facilities/", nil)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, api.ReasonSessionExpired, envelope(t, rr).ReasonCode)
	assert.Equal(t, []string{"sess-1"}, h.sessions.invalidated)
	require.Len(t, rr.Result().Cookies(), 1)
}

func TestRemoteRejection_ShowsRemoteMessage(t *testing.T) {
	h := newHarness()
	h.facilities.err = &portalapi.APIError{StatusCode: http.StatusBadRequest, Message: "Facility is locked"}

	rr := h.do(http.MethodGet, "/facilities/fac-1", nil)

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, "Facility is locked", envelope(t, rr).Message)
	assert.Empty(t, h.sessions.invalidated)
}

func TestProgress_OnboardingAliasFollowsRole(t *testing.T) {
	h := newHarness()
	h.sess.Role = portalapi.RoleOperator

	rr := h.do(http.MethodGet, "/progress/onboarding", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{progress.OperatorOnboarding + "|"}, h.progress.evaluated)

	rr = h.do(http.MethodGet, "/progress/facility/fac-9", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, progress.FacilityLifecycle+"|fac-9", h.progress.evaluated[1])

	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/progress/nope", nil).Code)
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/progress/facility", nil).Code)
}

func TestWizards(t *testing.T) {
	h := newHarness()

	rr := h.do(http.MethodPost, "/wizards/", map[string]string{"kind": "operator"})
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = h.do(http.MethodPost, "/wizards/", map[string]string{"kind": "astronaut"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = h.do(http.MethodPost, "/wizards/wiz-1/events", `{"event":"submit","payload":{"zipCode":"12345"}}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []wizard.Event{"submit"}, h.wizards.fired)
	assert.JSONEq(t, `{"zipCode":"12345"}`, string(h.wizards.payload))

	h.wizards.fireErr = fmt.Errorf("%w: sign in welcome", wizard.ErrInvalidTransition)
	rr = h.do(http.MethodPost, "/wizards/wiz-1/events", `{"event":"sign"}`)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, api.ReasonInvalidTransition, envelope(t, rr).ReasonCode)

	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/wizards/other", nil).Code)
}

func TestFacility_DescribesDocuments(t *testing.T) {
	h := newHarness()
	var f portalapi.Facility
	require.NoError(t, json.Unmarshal([]byte(`{"id":"fac-1","wregisAssignmentUrl":"https://x/w.pdf","wregisAssignmentStatus":"APPROVED"}`), &f))
	h.facilities.facility = &f

	rr := h.do(http.MethodGet, "/facilities/fac-1", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Documents        []documents.State `json:"documents"`
		MissingMandatory []documents.Key   `json:"missing_mandatory"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Len(t, resp.Documents, len(documents.Catalog()))
	assert.NotContains(t, resp.MissingMandatory, documents.WREGISAssignment)
	assert.NotEmpty(t, resp.MissingMandatory)
}

func TestDeleteFacility_InvalidatesProgress(t *testing.T) {
	h := newHarness()
	rr := h.do(http.MethodDelete, "/facilities/fac-1", nil)

	require.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, []string{"fac-1"}, h.facilities.deleted)
	assert.Equal(t, []string{"user-1"}, h.progress.invalidated)
}

func multipartBody(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUploadDocument(t *testing.T) {
	h := newHarness()
	pdf := []byte("%PDF-1.4\n%test\n")
	body, ct := multipartBody(t, "file", "wregis.pdf", pdf)

	req := httptest.NewRequest(http.MethodPut, "/facilities/fac-1/documents/wregis_assignment", body)
	req.Header.Set("Content-Type", ct)
	req = req.WithContext(session.WithSession(req.Context(), h.sess))
	rr := httptest.NewRecorder()
	h.svc.Handler().ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, documents.WREGISAssignment, h.documents.key)
	assert.Equal(t, "wregis.pdf", h.documents.filename)
	assert.Equal(t, pdf, h.documents.content)
}

func TestUploadDocument_Rejections(t *testing.T) {
	h := newHarness()

	rr := h.do(http.MethodPut, "/facilities/fac-1/documents/passport", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	body, ct := multipartBody(t, "other", "x.pdf", []byte("%PDF-1.4"))
	req := httptest.NewRequest(http.MethodPut, "/facilities/fac-1/documents/wregis_assignment", body)
	req.Header.Set("Content-Type", ct)
	req = req.WithContext(session.WithSession(req.Context(), h.sess))
	rr = httptest.NewRecorder()
	h.svc.Handler().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "file", envelope(t, rr).Fields[0].Field)
	assert.Nil(t, h.documents.content, "nothing should be uploaded")
}

func TestReports_JSONAndDownloads(t *testing.T) {
	h := newHarness()

	rr := h.do(http.MethodGet, "/reports/customers?page=2&limit=50", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"Customers"`)

	rr = h.do(http.MethodGet, "/reports/customers?format=csv&period=2024-Q3", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="customers-2024-Q3.csv"`, rr.Header().Get("Content-Disposition"))
	assert.Equal(t, "Name,Email\nAda,ada@example.test\nLin,lin@example.test\n", rr.Body.String())

	rr = h.do(http.MethodGet, "/reports/customers?format=xlsx", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "PK", rr.Body.String()[:2], "xlsx is a zip container")

	rr = h.do(http.MethodGet, "/reports/rec_statement?format=pdf&year=2024&quarter=2", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"rec_statement|2024-Q2|"}, h.reports.delivered)
}

func TestReports_Rejections(t *testing.T) {
	h := newHarness()

	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/reports/unknown", nil).Code)
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/reports/customers?format=docx", nil).Code)
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/reports/customers?page=0", nil).Code)
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/reports/customers?quarter=5&year=2024", nil).Code)
}

func TestEmailReport_DefaultsToSessionEmail(t *testing.T) {
	h := newHarness()

	rr := h.do(http.MethodPost, "/reports/commission_statement/email", map[string]int{"year": 2024, "quarter": 1})
	require.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, []string{"commission_statement|2024-Q1|owner@example.test"}, h.reports.delivered)

	rr = h.do(http.MethodPost, "/reports/commission_statement/email", map[string]any{"email": "bad", "year": 2024})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPoints(t *testing.T) {
	h := newHarness()

	rr := h.do(http.MethodGet, "/points/quote?points=3000", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"amount":"$15.00"`)

	rr = h.do(http.MethodPost, "/points/redeem", map[string]int{"points": 100})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "points", envelope(t, rr).Fields[0].Field)

	rr = h.do(http.MethodPost, "/points/redeem", map[string]int{"points": 4000})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"red-1"`)

	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/points/quote?points=lots", nil).Code)
}

func TestInvitations(t *testing.T) {
	h := newHarness()

	rr := h.do(http.MethodPost, "/invitations/", map[string]string{"inviteeEmail": "new@example.test", "role": "installer"})
	require.Equal(t, http.StatusCreated, rr.Code)
	require.Len(t, h.invitations.sent, 1)
	assert.Equal(t, "INSTALLER", h.invitations.sent[0].Role)

	rr = h.do(http.MethodGet, "/invitations/", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())

	assert.Equal(t, http.StatusOK, h.do(http.MethodPost, "/invitations/accept", map[string]string{"code": "REF-1"}).Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodPost, "/invitations/accept", map[string]string{"code": "REF-2"}).Code)
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, "/invitations/accept", map[string]string{}).Code)
	assert.Equal(t, http.StatusConflict, h.do(http.MethodPost, "/invitations/REF-1/terminate", nil).Code)

	rr = h.do(http.MethodPost, "/facilities/fac-1/installer", map[string]string{"installerId": "inst-7"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"inst-7"`)
}

func TestSupport(t *testing.T) {
	h := newHarness()

	rr := h.do(http.MethodPost, "/support/tickets", map[string]string{"subject": "Meter offline", "message": "help"})
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = h.do(http.MethodGet, "/support/tickets/t-1/replies", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"replies":[]`)

	rr = h.do(http.MethodGet, "/support/tickets/t-2/replies", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, h.support.watched, "t-2", "unknown tickets start being watched")

	require.NoError(t, h.svc.Close())
	assert.True(t, h.support.closed)
}

func TestDocumentCatalog(t *testing.T) {
	h := newHarness()
	rr := h.do(http.MethodGet, "/documents/catalog", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var types []documents.Type
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &types))
	assert.Len(t, types, len(documents.Catalog()))
}
