package portal

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gloriousnetworker/dcarbon-portal/internal/components/api"
	"github.com/gloriousnetworker/dcarbon-portal/internal/components/progress"
)

// onboardingAlias picks the workflow for the caller's role.
const onboardingAlias = "onboarding"

// workflowProgress handles GET /api/progress/{workflow}.
func (s *Service) workflowProgress(w http.ResponseWriter, r *http.Request) {
	sess := caller(r)
	name := chi.URLParam(r, "workflow")
	if name == onboardingAlias {
		name = progress.ForRole(sess.Role, sess.EntityType)
	}
	if name == progress.FacilityLifecycle {
		api.WriteBadRequest(w, api.ReasonBadRequest, "facility progress needs a facility id")
		return
	}
	s.evaluate(w, r, name, progress.Subject{Auth: sess.Auth()})
}

// facilityProgress handles GET /api/progress/facility/{facilityID}.
func (s *Service) facilityProgress(w http.ResponseWriter, r *http.Request) {
	subj := progress.Subject{Auth: caller(r).Auth(), FacilityID: chi.URLParam(r, "facilityID")}
	s.evaluate(w, r, progress.FacilityLifecycle, subj)
}

func (s *Service) evaluate(w http.ResponseWriter, r *http.Request, name string, subj progress.Subject) {
	wf, ok := s.deps.Workflows.Lookup(name)
	if !ok {
		api.WriteNotFound(w, "unknown workflow "+name)
		return
	}
	p, err := s.deps.Progress.Evaluate(r.Context(), wf, subj)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
