// Package api provides the portal's JSON error envelope and the mapping from
// domain errors to deterministic reason codes.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gloriousnetworker/dcarbon-portal/internal/components/documents"
	"github.com/gloriousnetworker/dcarbon-portal/internal/components/invitations"
	"github.com/gloriousnetworker/dcarbon-portal/internal/components/portalapi"
	"github.com/gloriousnetworker/dcarbon-portal/internal/components/reports"
	"github.com/gloriousnetworker/dcarbon-portal/internal/components/session"
	"github.com/gloriousnetworker/dcarbon-portal/internal/components/validate"
	"github.com/gloriousnetworker/dcarbon-portal/internal/components/wizard"
	"github.com/gloriousnetworker/dcarbon-portal/internal/platform/logutil"
)

// Deterministic reason codes. Clients switch on these, so they stay stable.
const (
	ReasonUnauthenticated    = "unauthenticated"
	ReasonSessionExpired     = "session_expired"
	ReasonInvalidCredentials = "invalid_credentials"

	ReasonRateLimited = "rate_limited"

	ReasonBadRequest        = "bad_request"
	ReasonValidationFailed  = "validation_failed"
	ReasonInvalidTransition = "invalid_transition"
	ReasonNotFound          = "not_found"
	ReasonConflict          = "conflict"
	ReasonUnsupportedType   = "unsupported_media_type"
	ReasonTooLarge          = "payload_too_large"

	ReasonUpstreamError = "upstream_error"

	ReasonInternalError = "internal_error"
)

// ErrorEnvelope is the body of every error response.
type ErrorEnvelope struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error information.
type ErrorDetail struct {
	Code       string                `json:"code"`        // HTTP status text
	ReasonCode string                `json:"reason_code"` // deterministic reason code
	Message    string                `json:"message"`
	Fields     []validate.FieldError `json:"fields,omitempty"`
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, statusCode int, reasonCode, message string) {
	writeEnvelope(w, statusCode, ErrorDetail{ReasonCode: reasonCode, Message: message})
}

func writeEnvelope(w http.ResponseWriter, statusCode int, d ErrorDetail) {
	d.Code = http.StatusText(statusCode)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorEnvelope{Error: d})
}

// WriteUnauthorized writes a 401 Unauthorized error.
func WriteUnauthorized(w http.ResponseWriter, reasonCode, message string) {
	WriteError(w, http.StatusUnauthorized, reasonCode, message)
}

// WriteNotFound writes a 404 Not Found error.
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, ReasonNotFound, message)
}

// WriteBadRequest writes a 400 Bad Request error.
func WriteBadRequest(w http.ResponseWriter, reasonCode, message string) {
	WriteError(w, http.StatusBadRequest, reasonCode, message)
}

// WriteTooManyRequests writes a 429 Too Many Requests error.
func WriteTooManyRequests(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusTooManyRequests, ReasonRateLimited, message)
}

// WriteInternalError writes a 500 Internal Server Error.
// The message must not carry internals.
func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, ReasonInternalError, message)
}

// WriteDomainError maps err to a status and reason code and writes it.
// Unrecognised errors are logged and reported as internal errors.
func WriteDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, detail := Classify(err)
	if status >= http.StatusInternalServerError {
		logutil.Ctx(r.Context()).Error("request failed", "status", status, "error", err)
	}
	writeEnvelope(w, status, detail)
}

// Classify maps a domain error to an HTTP status and error detail.
func Classify(err error) (int, ErrorDetail) {
	errs, isValidation := validate.As(err)

	// Upload rejections keep their own status and still list the field.
	switch {
	case errors.Is(err, documents.ErrUnknownDocument):
		return http.StatusNotFound, ErrorDetail{ReasonCode: ReasonNotFound, Message: err.Error(), Fields: errs}
	case errors.Is(err, documents.ErrUnsupportedType):
		return http.StatusUnsupportedMediaType, ErrorDetail{ReasonCode: ReasonUnsupportedType, Message: err.Error(), Fields: errs}
	case errors.Is(err, documents.ErrTooLarge):
		return http.StatusRequestEntityTooLarge, ErrorDetail{ReasonCode: ReasonTooLarge, Message: err.Error(), Fields: errs}
	}

	if isValidation {
		return http.StatusBadRequest, ErrorDetail{
			ReasonCode: ReasonValidationFailed,
			Message:    errs.Error(),
			Fields:     errs,
		}
	}

	switch {
	case errors.Is(err, session.ErrExpired), errors.Is(err, session.ErrNotFound):
		return http.StatusUnauthorized, ErrorDetail{ReasonCode: ReasonSessionExpired, Message: "session expired, please sign in again"}
	case errors.Is(err, session.ErrInvalidCredentials):
		return http.StatusUnauthorized, ErrorDetail{ReasonCode: ReasonInvalidCredentials, Message: "invalid email or password"}
	case errors.Is(err, wizard.ErrInvalidTransition):
		return http.StatusConflict, ErrorDetail{ReasonCode: ReasonInvalidTransition, Message: err.Error()}
	case errors.Is(err, wizard.ErrUnknownKind), errors.Is(err, reports.ErrUnknownFormat):
		return http.StatusBadRequest, ErrorDetail{ReasonCode: ReasonBadRequest, Message: err.Error()}
	case errors.Is(err, wizard.ErrNotFound), errors.Is(err, invitations.ErrNotFound):
		return http.StatusNotFound, ErrorDetail{ReasonCode: ReasonNotFound, Message: err.Error()}
	case errors.Is(err, invitations.ErrFinal):
		return http.StatusConflict, ErrorDetail{ReasonCode: ReasonConflict, Message: err.Error()}
	case errors.Is(err, documents.ErrEmptyFile):
		return http.StatusBadRequest, ErrorDetail{ReasonCode: ReasonValidationFailed, Message: err.Error()}
	}

	var apiErr *portalapi.APIError
	if errors.As(err, &apiErr) {
		if portalapi.IsNotFound(err) {
			return http.StatusNotFound, ErrorDetail{ReasonCode: ReasonNotFound, Message: apiErr.Message}
		}
		// Remote rejections of the request are shown to the user verbatim.
		status := http.StatusBadGateway
		if apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
			status = http.StatusUnprocessableEntity
		}
		return status, ErrorDetail{ReasonCode: ReasonUpstreamError, Message: apiErr.Message}
	}

	return http.StatusInternalServerError, ErrorDetail{ReasonCode: ReasonInternalError, Message: "internal error"}
}
