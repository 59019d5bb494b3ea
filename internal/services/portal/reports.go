package portal

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/gloriousnetworker/dcarbon-portal/internal/components/api"
	"github.com/gloriousnetworker/dcarbon-portal/internal/components/reports"
	"github.com/gloriousnetworker/dcarbon-portal/internal/components/validate"
)

// reportKind resolves the {kind} parameter, writing a 404 when unknown.
func reportKind(w http.ResponseWriter, r *http.Request) (reports.Kind, bool) {
	kind, ok := reports.ParseKind(chi.URLParam(r, "kind"))
	if !ok {
		api.WriteNotFound(w, "unknown report "+chi.URLParam(r, "kind"))
	}
	return kind, ok
}

// periodFromRequest reads ?period=2024-Q3, or ?year=&quarter=.
func periodFromRequest(r *http.Request) (reports.Period, error) {
	q := r.URL.Query()
	if p := q.Get("period"); p != "" {
		return reports.ParsePeriod(p)
	}
	return reports.PeriodFromQuery(q.Get("year"), q.Get("quarter"))
}

func queryFromRequest(r *http.Request) (reports.Query, error) {
	p, err := periodFromRequest(r)
	if err != nil {
		return reports.Query{}, err
	}
	q := reports.Query{Period: p, Search: strings.TrimSpace(r.URL.Query().Get("search"))}

	var errs validate.Errors
	if v := r.URL.Query().Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			errs.Add("page", "must be a positive number")
		}
		q.Page = n
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1000 {
			errs.Add("limit", "must be between 1 and 1000")
		}
		q.Limit = n
	}
	return q, errs.Err()
}

// getReport handles GET /api/reports/{kind}. Without ?format it returns the
// page as JSON; csv and xlsx are rendered here, pdf by the backend.
func (s *Service) getReport(w http.ResponseWriter, r *http.Request) {
	kind, ok := reportKind(w, r)
	if !ok {
		return
	}
	q, err := queryFromRequest(r)
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}

	raw := r.URL.Query().Get("format")
	if raw == "" || strings.EqualFold(raw, "json") {
		res, err := s.deps.Reports.Fetch(r.Context(), caller(r).Auth(), kind, q)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
		return
	}

	format, err := reports.ParseFormat(raw)
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	if format == reports.FormatPDF {
		doc, err := s.deps.Reports.Deliver(r.Context(), caller(r).Auth(), kind, q.Period, "")
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, doc)
		return
	}

	res, err := s.deps.Reports.Fetch(r.Context(), caller(r).Auth(), kind, q)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	// render fully before writing headers so failures still get an envelope
	var buf bytes.Buffer
	if err := reports.Export(&buf, format, res.Table); err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+reports.FileName(kind, q.Period, format)+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// EmailReportRequest asks for a report by email.
type EmailReportRequest struct {
	Email   string `json:"email"`
	Year    int    `json:"year"`
	Quarter int    `json:"quarter"`
}

// emailReport handles POST /api/reports/{kind}/email. An empty email sends
// the report to the session's address.
func (s *Service) emailReport(w http.ResponseWriter, r *http.Request) {
	kind, ok := reportKind(w, r)
	if !ok {
		return
	}
	var req EmailReportRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sess := caller(r)
	email := strings.TrimSpace(req.Email)
	if email == "" {
		email = sess.Email
	}
	doc, err := s.deps.Reports.Deliver(r.Context(), sess.Auth(), kind, reports.Period{Year: req.Year, Quarter: req.Quarter}, email)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, doc)
}
