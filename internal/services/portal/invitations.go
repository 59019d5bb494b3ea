package portal

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/gloriousnetworker/dcarbon-portal/internal/components/api"
	"github.com/gloriousnetworker/dcarbon-portal/internal/components/invitations"
	"github.com/gloriousnetworker/dcarbon-portal/internal/components/portalapi"
	"github.com/gloriousnetworker/dcarbon-portal/internal/components/validate"
)

// AcceptInvitationRequest is the request body for accepting an invitation.
type AcceptInvitationRequest struct {
	Code string `json:"code"`
}

// sendInvitation handles POST /api/invitations.
func (s *Service) sendInvitation(w http.ResponseWriter, r *http.Request) {
	var form invitations.Form
	if !decodeJSON(w, r, &form) {
		return
	}
	inv, err := s.deps.Invitations.Send(r.Context(), caller(r).Auth(), form)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

// listInvitations handles GET /api/invitations.
func (s *Service) listInvitations(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Invitations.List(r.Context(), caller(r).Auth())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if list == nil {
		list = []portalapi.Invitation{}
	}
	writeJSON(w, http.StatusOK, list)
}

// acceptInvitation handles POST /api/invitations/accept.
func (s *Service) acceptInvitation(w http.ResponseWriter, r *http.Request) {
	var req AcceptInvitationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	code := strings.TrimSpace(req.Code)
	if code == "" {
		api.WriteDomainError(w, r, validate.Field("code", "is required"))
		return
	}
	inv, err := s.deps.Invitations.Accept(r.Context(), caller(r).Auth(), code)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

// terminateInvitation handles POST /api/invitations/{code}/terminate.
func (s *Service) terminateInvitation(w http.ResponseWriter, r *http.Request) {
	inv, err := s.deps.Invitations.Terminate(r.Context(), caller(r).Auth(), chi.URLParam(r, "code"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}
