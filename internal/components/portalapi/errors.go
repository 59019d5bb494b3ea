package portalapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// APIError is a non-2xx answer from the remote API.
type APIError struct {
	StatusCode int
	Message    string
	// Data is the envelope's data member, when the error carried one.
	Data []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("portal api: %d: %s", e.StatusCode, e.Message)
}

// fallbackMessage is shown when the server sent no usable message.
func fallbackMessage(status int) string {
	return fmt.Sprintf("request failed with status %d", status)
}

// IsAuthError reports whether err means the remote token is no longer accepted.
// Any 401 qualifies. The remote API also reports token failures under other
// statuses, so a message counts when it is about the token or session itself;
// "referral code expired" or a plain 403 on another user's record do not.
func IsAuthError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.StatusCode == http.StatusUnauthorized {
		return true
	}
	msg := strings.ToLower(apiErr.Message)
	if strings.Contains(msg, "unauthorized") {
		return true
	}
	aboutToken := strings.Contains(msg, "token") || strings.Contains(msg, "jwt") || strings.Contains(msg, "session")
	failed := strings.Contains(msg, "expired") || strings.Contains(msg, "invalid")
	return aboutToken && failed
}

// IsNotFound reports whether err is a remote 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// IsDuplicateMeter reports whether err rejects a facility because one of its
// meter IDs is already registered.
func IsDuplicateMeter(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.StatusCode != http.StatusConflict && apiErr.StatusCode != http.StatusBadRequest {
		return false
	}
	msg := strings.ToLower(apiErr.Message)
	if !strings.Contains(msg, "meter") {
		return false
	}
	return strings.Contains(msg, "already") || strings.Contains(msg, "duplicate") || strings.Contains(msg, "exist")
}
