package portal

import (
	"net/http"
	"strings"

	"github.com/gloriousnetworker/dcarbon-portal/internal/components/api"
	"github.com/gloriousnetworker/dcarbon-portal/internal/components/progress"
	"github.com/gloriousnetworker/dcarbon-portal/internal/components/session"
	"github.com/gloriousnetworker/dcarbon-portal/internal/components/validate"
	"github.com/gloriousnetworker/dcarbon-portal/internal/platform/logutil"
)

// LoginRequest is the request body for login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// SessionResponse describes the caller's session.
type SessionResponse struct {
	*session.Session
	// Workflow is the onboarding workflow for the session's role.
	Workflow string `json:"workflow"`
}

func describeSession(sess *session.Session) SessionResponse {
	return SessionResponse{Session: sess, Workflow: progress.ForRole(sess.Role, sess.EntityType)}
}

// login handles POST /api/session/login.
func (s *Service) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := validate.Struct(&req); err != nil {
		api.WriteDomainError(w, r, err)
		return
	}

	sess, err := s.deps.Sessions.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.conf.CookieName,
		Value:    sess.ID,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   s.conf.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, describeSession(sess))
}

// logout handles POST /api/session/logout. Invalidation stops the session's
// pollers and forgets its wizards.
func (s *Service) logout(w http.ResponseWriter, r *http.Request) {
	sess := caller(r)
	if err := s.deps.Sessions.Invalidate(r.Context(), sess.ID); err != nil {
		logutil.Ctx(r.Context()).Error("logout failed", "error", err)
		api.WriteInternalError(w, "logout failed")
		return
	}
	s.clearCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// currentSession handles GET /api/session.
func (s *Service) currentSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, describeSession(caller(r)))
}
