// Package session owns portal sessions: the remote token, the caller's
// identity and the small bits of onboarding state the UI carries between
// screens. The Manager is the only writer.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gloriousnetworker/dcarbon-portal/internal/components/portalapi"
	"github.com/gloriousnetworker/dcarbon-portal/internal/platform/store"
)

var (
	ErrNotFound           = errors.New("session not found")
	ErrExpired            = errors.New("session expired")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Session is an authenticated portal session.
type Session struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	AuthToken  string `json:"-"`
	Role       string `json:"role"`
	EntityType string `json:"entity_type"`
	Email      string `json:"email"`

	LoginResponse          json.RawMessage `json:"login_response,omitempty"`
	ReferralResponse       json.RawMessage `json:"referral_response,omitempty"`
	OwnerReferralCode      string          `json:"owner_referral_code,omitempty"`
	OperatorID             string          `json:"operator_id,omitempty"`
	HasVisitedDashboard    bool            `json:"has_visited_dashboard"`
	TempFinancialAgreement json.RawMessage `json:"temp_financial_agreement,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Auth returns the remote credentials of the session.
func (s *Session) Auth() portalapi.Auth {
	return portalapi.Auth{Token: s.AuthToken, UserID: s.UserID}
}

// IsExpired reports whether the session is past its expiry at now.
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

func (s *Session) toRecord(updatedAt time.Time) *store.Session {
	return &store.Session{
		ID:                     s.ID,
		UserID:                 s.UserID,
		AuthToken:              s.AuthToken,
		Role:                   s.Role,
		EntityType:             s.EntityType,
		Email:                  s.Email,
		LoginResponse:          store.JSON(s.LoginResponse),
		ReferralResponse:       store.JSON(s.ReferralResponse),
		OwnerReferralCode:      s.OwnerReferralCode,
		OperatorID:             s.OperatorID,
		HasVisitedDashboard:    s.HasVisitedDashboard,
		TempFinancialAgreement: store.JSON(s.TempFinancialAgreement),
		CreatedAt:              s.CreatedAt.Unix(),
		UpdatedAt:              updatedAt.Unix(),
		ExpiresAt:              s.ExpiresAt.Unix(),
	}
}

func rawOrNil(b []byte) json.RawMessage {
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	return json.RawMessage(b)
}

func fromRecord(r *store.Session) *Session {
	return &Session{
		ID:                     r.ID,
		UserID:                 r.UserID,
		AuthToken:              r.AuthToken,
		Role:                   r.Role,
		EntityType:             r.EntityType,
		Email:                  r.Email,
		LoginResponse:          rawOrNil(r.LoginResponse),
		ReferralResponse:       rawOrNil(r.ReferralResponse),
		OwnerReferralCode:      r.OwnerReferralCode,
		OperatorID:             r.OperatorID,
		HasVisitedDashboard:    r.HasVisitedDashboard,
		TempFinancialAgreement: rawOrNil(r.TempFinancialAgreement),
		CreatedAt:              time.Unix(r.CreatedAt, 0),
		ExpiresAt:              time.Unix(r.ExpiresAt, 0),
	}
}

type contextKey struct{}

// WithSession stores s in ctx.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the session stored by WithSession, or nil.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(contextKey{}).(*Session)
	return s
}
