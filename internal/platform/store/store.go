// Package store provides persistence for portal sessions and wizard instances
// behind pluggable drivers.
package store

import (
	"context"
	"errors"

	"gorm.io/datatypes"
)

// Common errors for store operations.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrClosed        = errors.New("store closed")
)

// Driver defines the interface for a persistence backend.
// Implementations must be safe for concurrent use.
type Driver interface {
	// Init initializes the driver (open connections, run migrations).
	Init(ctx context.Context) error

	// Close releases resources held by the driver.
	Close() error

	// Name returns the driver name (memory, sqlite, postgres).
	Name() string
}

// SessionStore persists authenticated portal sessions.
type SessionStore interface {
	CreateSession(ctx context.Context, s *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	UpdateSession(ctx context.Context, s *Session) error
	DeleteSession(ctx context.Context, id string) error
	// ListExpiredSessions returns the IDs of sessions whose ExpiresAt is at or
	// before now (unix seconds). Callers remove them through DeleteSession.
	ListExpiredSessions(ctx context.Context, now int64) ([]string, error)
}

// WizardStore persists onboarding wizard instances.
type WizardStore interface {
	CreateWizard(ctx context.Context, w *Wizard) error
	GetWizard(ctx context.Context, id string) (*Wizard, error)
	UpdateWizard(ctx context.Context, w *Wizard) error
	ListWizards(ctx context.Context, sessionID string) ([]*Wizard, error)
	DeleteWizardsBySession(ctx context.Context, sessionID string) error
}

// Store is what every driver provides.
type Store interface {
	Driver
	SessionStore
	WizardStore
}

// Session is the persisted form of a portal session. JSON-valued fields hold
// the raw remote payloads the UI needs back verbatim.
type Session struct {
	ID                     string         `json:"id" gorm:"primaryKey"`
	UserID                 string         `json:"user_id" gorm:"index"`
	AuthToken              string         `json:"-"`
	Role                   string         `json:"role"`
	EntityType             string         `json:"entity_type"`
	Email                  string         `json:"email"`
	LoginResponse          datatypes.JSON `json:"login_response"`
	ReferralResponse       datatypes.JSON `json:"referral_response"`
	OwnerReferralCode      string         `json:"owner_referral_code"`
	OperatorID             string         `json:"operator_id"`
	HasVisitedDashboard    bool           `json:"has_visited_dashboard"`
	TempFinancialAgreement datatypes.JSON `json:"temp_financial_agreement"`
	CreatedAt              int64          `json:"created_at"`
	UpdatedAt              int64          `json:"updated_at"`
	ExpiresAt              int64          `json:"expires_at" gorm:"index"`
}

// Wizard is the persisted form of a wizard instance. Data is the JSON
// encoding of the instance's step data.
type Wizard struct {
	ID        string         `json:"id" gorm:"primaryKey"`
	SessionID string         `json:"session_id" gorm:"index"`
	Kind      string         `json:"kind"`
	State     string         `json:"state"`
	Data      datatypes.JSON `json:"data"`
	LastError string         `json:"last_error"`
	CreatedAt int64          `json:"created_at"`
	UpdatedAt int64          `json:"updated_at"`
}

// JSON returns raw as a column value, "null" when empty.
func JSON(raw []byte) datatypes.JSON {
	if len(raw) == 0 {
		return datatypes.JSON("null")
	}
	return datatypes.JSON(raw)
}
