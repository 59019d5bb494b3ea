package portal

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/gloriousnetworker/dcarbon-portal/internal/components/api"
	"github.com/gloriousnetworker/dcarbon-portal/internal/components/documents"
	"github.com/gloriousnetworker/dcarbon-portal/internal/components/portalapi"
	"github.com/gloriousnetworker/dcarbon-portal/internal/components/validate"
)

// uploadField is the multipart field carrying a document.
const uploadField = "file"

// FacilityResponse is a facility with its decoded document states.
type FacilityResponse struct {
	Facility         *portalapi.Facility `json:"facility"`
	Documents        []documents.State   `json:"documents"`
	MissingMandatory []documents.Key     `json:"missing_mandatory"`
	Rejected         []documents.State   `json:"rejected,omitempty"`
}

func describeFacility(f *portalapi.Facility) FacilityResponse {
	missing := documents.MissingMandatory(f)
	if missing == nil {
		missing = []documents.Key{}
	}
	return FacilityResponse{
		Facility:         f,
		Documents:        documents.List(f),
		MissingMandatory: missing,
		Rejected:         documents.Rejected(f),
	}
}

// documentCatalog handles GET /api/documents/catalog.
func (s *Service) documentCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, documents.Catalog())
}

// listFacilities handles GET /api/facilities.
func (s *Service) listFacilities(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Facilities.ListFacilities(r.Context(), caller(r).Auth())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if list == nil {
		list = []portalapi.Facility{}
	}
	writeJSON(w, http.StatusOK, list)
}

// getFacility handles GET /api/facilities/{id}.
func (s *Service) getFacility(w http.ResponseWriter, r *http.Request) {
	f, err := s.deps.Facilities.GetFacility(r.Context(), caller(r).Auth(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, describeFacility(f))
}

// deleteFacility handles DELETE /api/facilities/{id}.
func (s *Service) deleteFacility(w http.ResponseWriter, r *http.Request) {
	sess := caller(r)
	if err := s.deps.Facilities.DeleteFacility(r.Context(), sess.Auth(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	s.deps.Progress.Invalidate(r.Context(), sess.UserID)
	w.WriteHeader(http.StatusNoContent)
}

// uploadDocument handles PUT /api/facilities/{id}/documents/{key}. The body
// is multipart with the document in the "file" field.
func (s *Service) uploadDocument(w http.ResponseWriter, r *http.Request) {
	key := documents.Key(chi.URLParam(r, "key"))
	if _, ok := documents.Lookup(key); !ok {
		api.WriteNotFound(w, "unknown document type "+string(key))
		return
	}

	// headroom for multipart framing
	r.Body = http.MaxBytesReader(w, r.Body, s.conf.MaxUploadBytes+64<<10)
	file, header, err := r.FormFile(uploadField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			api.WriteDomainError(w, r, documents.ErrTooLarge)
			return
		}
		api.WriteDomainError(w, r, validate.Field(uploadField, "is required"))
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, s.conf.MaxUploadBytes+1))
	if err != nil {
		api.WriteBadRequest(w, api.ReasonBadRequest, "failed to read upload")
		return
	}

	f, err := s.deps.Documents.Upload(r.Context(), caller(r).Auth(), chi.URLParam(r, "id"), key, header.Filename, content)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, describeFacility(f))
}

// AssignInstallerRequest is the request body for assigning an installer.
type AssignInstallerRequest struct {
	InstallerID string `json:"installerId"`
}

// assignInstaller handles POST /api/facilities/{id}/installer.
func (s *Service) assignInstaller(w http.ResponseWriter, r *http.Request) {
	var req AssignInstallerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.InstallerID = strings.TrimSpace(req.InstallerID)
	if req.InstallerID == "" {
		api.WriteDomainError(w, r, validate.Field("installerId", "is required"))
		return
	}
	f, err := s.deps.Invitations.AssignInstaller(r.Context(), caller(r).Auth(), chi.URLParam(r, "id"), req.InstallerID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, describeFacility(f))
}
