package portal

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gloriousnetworker/dcarbon-portal/internal/components/wizard"
)

// StartWizardRequest is the request body for starting a wizard.
type StartWizardRequest struct {
	Kind wizard.Kind `json:"kind"`
}

// EventRequest fires an event on a wizard. Payload is the step's form.
type EventRequest struct {
	Event   wizard.Event    `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// listWizards handles GET /api/wizards.
func (s *Service) listWizards(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Wizards.List(r.Context(), caller(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"kinds":   s.deps.Wizards.Kinds(),
		"wizards": list,
	})
}

// startWizard handles POST /api/wizards.
func (s *Service) startWizard(w http.ResponseWriter, r *http.Request) {
	var req StartWizardRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	inst, err := s.deps.Wizards.Start(r.Context(), caller(r), req.Kind)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, inst)
}

// getWizard handles GET /api/wizards/{id}.
func (s *Service) getWizard(w http.ResponseWriter, r *http.Request) {
	inst, err := s.deps.Wizards.Get(r.Context(), caller(r), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inst)
}

// fireWizardEvent handles POST /api/wizards/{id}/events.
func (s *Service) fireWizardEvent(w http.ResponseWriter, r *http.Request) {
	var req EventRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	inst, err := s.deps.Wizards.Fire(r.Context(), caller(r), chi.URLParam(r, "id"), req.Event, req.Payload)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inst)
}
