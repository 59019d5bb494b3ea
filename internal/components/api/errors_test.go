package api_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gloriousnetworker/dcarbon-portal/internal/components/api"
	"github.com/gloriousnetworker/dcarbon-portal/internal/components/documents"
	"github.com/gloriousnetworker/dcarbon-portal/internal/components/invitations"
	"github.com/gloriousnetworker/dcarbon-portal/internal/components/portalapi"
	"github.com/gloriousnetworker/dcarbon-portal/internal/components/session"
	"github.com/gloriousnetworker/dcarbon-portal/internal/components/validate"
	"github.com/gloriousnetworker/dcarbon-portal/internal/components/wizard"
	"github.com/gloriousnetworker/dcarbon-portal/internal/platform/cache/memory"
)

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) api.ErrorEnvelope {
	t.Helper()
	var env api.ErrorEnvelope
	if err := json.NewDecoder(rr.Body).Decode(&env); err != nil {
		t.Fatalf("failed to decode envelope: %v", err)
	}
	return env
}

func TestWriteError_EnvelopeShape(t *testing.T) {
	rr := httptest.NewRecorder()
	api.WriteError(rr, http.StatusTooManyRequests, api.ReasonRateLimited, "slow down")

	if rr.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %s", ct)
	}
	env := decodeEnvelope(t, rr)
	if env.Error.Code != "Too Many Requests" {
		t.Errorf("unexpected code %q", env.Error.Code)
	}
	if env.Error.ReasonCode != "rate_limited" || env.Error.Message != "slow down" {
		t.Errorf("unexpected detail %+v", env.Error)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		reason string
	}{
		{"validation", validate.Field("zipCode", "must be a 5-digit ZIP"), 400, api.ReasonValidationFailed},
		{"wrapped validation", fmt.Errorf("%w: %w", wizard.ErrInvalidTransition, validate.Field("meterIds", "required")), 400, api.ReasonValidationFailed},
		{"invalid transition", fmt.Errorf("%w: sign from welcome", wizard.ErrInvalidTransition), 409, api.ReasonInvalidTransition},
		{"session expired wraps remote 401", fmt.Errorf("%w: %w", session.ErrExpired, &portalapi.APIError{StatusCode: 401, Message: "jwt expired"}), 401, api.ReasonSessionExpired},
		{"session missing", session.ErrNotFound, 401, api.ReasonSessionExpired},
		{"bad credentials", session.ErrInvalidCredentials, 401, api.ReasonInvalidCredentials},
		{"wizard missing", wizard.ErrNotFound, 404, api.ReasonNotFound},
		{"invitation missing", invitations.ErrNotFound, 404, api.ReasonNotFound},
		{"invitation final", invitations.ErrFinal, 409, api.ReasonConflict},
		{"unknown document", documents.ErrUnknownDocument, 404, api.ReasonNotFound},
		{"unsupported file", documents.ErrUnsupportedType, 415, api.ReasonUnsupportedType},
		{"too large", documents.ErrTooLarge, 413, api.ReasonTooLarge},
		{"upload rejection carrying a field", fmt.Errorf("%w text/plain: %w", documents.ErrUnsupportedType, validate.Field("file", "must be a PDF, PNG or JPEG")), 415, api.ReasonUnsupportedType},
		{"remote 404", &portalapi.APIError{StatusCode: 404, Message: "Facility not found"}, 404, api.ReasonNotFound},
		{"remote rejection", &portalapi.APIError{StatusCode: 400, Message: "Meter already registered"}, 422, api.ReasonUpstreamError},
		{"remote outage", &portalapi.APIError{StatusCode: 503, Message: "Service unavailable"}, 502, api.ReasonUpstreamError},
		{"unknown", errors.New("disk on fire"), 500, api.ReasonInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, detail := api.Classify(tt.err)
			if status != tt.status {
				t.Errorf("status = %d, want %d", status, tt.status)
			}
			if detail.ReasonCode != tt.reason {
				t.Errorf("reason = %q, want %q", detail.ReasonCode, tt.reason)
			}
		})
	}
}

func TestWriteDomainError_RemoteMessageShownVerbatim(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/wizards/x/events", nil)
	api.WriteDomainError(rr, req, &portalapi.APIError{StatusCode: 409, Message: "Meter 12345 already registered"})

	env := decodeEnvelope(t, rr)
	if env.Error.Message != "Meter 12345 already registered" {
		t.Errorf("expected remote message, got %q", env.Error.Message)
	}
}

func TestWriteDomainError_ValidationListsFields(t *testing.T) {
	var errs validate.Errors
	errs.Add("email", "must be a valid email address")
	errs.Add("zipCode", "must be a 5-digit ZIP")

	rr := httptest.NewRecorder()
	api.WriteDomainError(rr, httptest.NewRequest(http.MethodPost, "/", nil), errs.Err())

	env := decodeEnvelope(t, rr)
	if len(env.Error.Fields) != 2 || env.Error.Fields[1].Field != "zipCode" {
		t.Errorf("expected both field errors, got %+v", env.Error.Fields)
	}
}

func TestWriteDomainError_InternalErrorHidesDetails(t *testing.T) {
	rr := httptest.NewRecorder()
	api.WriteDomainError(rr, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("dsn=postgres://secret"))

	env := decodeEnvelope(t, rr)
	if env.Error.Message != "internal error" {
		t.Errorf("internal details leaked: %q", env.Error.Message)
	}
}

func TestHealthHandler(t *testing.T) {
	c := memory.New(0, 0)
	defer c.Close()

	rr := httptest.NewRecorder()
	api.HealthHandler(c)(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp api.HealthResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" || resp.Cache != "ok" {
		t.Errorf("unexpected health %+v", resp)
	}
}
