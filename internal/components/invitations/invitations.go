// Package invitations sends and manages referral invitations.
//
// An invitation starts PENDING and ends ACCEPTED or TERMINATED; the end
// states are final.
package invitations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gloriousnetworker/dcarbon-portal/internal/components/portalapi"
	"github.com/gloriousnetworker/dcarbon-portal/internal/components/validate"
	"github.com/gloriousnetworker/dcarbon-portal/internal/platform/logutil"
)

var (
	ErrNotFound = errors.New("invitation not found")
	ErrFinal    = errors.New("invitation is no longer pending")
)

// Invitation modes. EPC (engineering, procurement and construction) is
// only offered to installers.
const (
	ModeStandard = "STANDARD"
	ModeEPC      = "EPC"
)

// CanTransition reports whether an invitation may move from one status to another.
func CanTransition(from, to string) bool {
	if !strings.EqualFold(from, portalapi.InvitationPending) {
		return false
	}
	switch strings.ToUpper(to) {
	case portalapi.InvitationAccepted, portalapi.InvitationTerminated:
		return true
	}
	return false
}

// Form sends one invitation.
type Form struct {
	InviteeEmail string `json:"inviteeEmail" validate:"required,email"`
	Name         string `json:"name" validate:"max=120"`
	Phone        string `json:"phoneNumber" validate:"omitempty,phone"`
	Role         string `json:"role" validate:"required,oneof=OWNER OPERATOR BOTH SALES_AGENT INSTALLER FINANCE_COMPANY"`
	Mode         string `json:"mode" validate:"omitempty,oneof=STANDARD EPC"`
	Message      string `json:"message" validate:"max=1000"`
}

// Check validates the form.
func (f *Form) Check() error {
	f.Role = strings.ToUpper(strings.TrimSpace(f.Role))
	f.Mode = strings.ToUpper(strings.TrimSpace(f.Mode))
	f.InviteeEmail = strings.TrimSpace(f.InviteeEmail)
	if err := validate.Struct(f); err != nil {
		return err
	}
	if f.Mode == ModeEPC && f.Role != portalapi.RoleInstaller {
		return validate.Field("mode", "EPC mode is only available for installers")
	}
	return nil
}

// API is the part of the remote client invitations use.
type API interface {
	SendInvitation(ctx context.Context, a portalapi.Auth, req portalapi.InvitationRequest) (*portalapi.Invitation, error)
	ListInvitations(ctx context.Context, a portalapi.Auth) ([]portalapi.Invitation, error)
	AcceptInvitation(ctx context.Context, a portalapi.Auth, code string) (*portalapi.Invitation, error)
	TerminateInvitation(ctx context.Context, a portalapi.Auth, code string) (*portalapi.Invitation, error)
	AssignInstaller(ctx context.Context, a portalapi.Auth, facilityID, installerID string) (*portalapi.Facility, error)
}

// Invalidator drops cached progress for a user.
type Invalidator interface {
	Invalidate(ctx context.Context, userID string)
}

// Service manages invitations.
type Service struct {
	api    API
	inv    Invalidator
	logger *slog.Logger
}

// NewService creates an invitation service. inv may be nil.
func NewService(api API, inv Invalidator, logger *slog.Logger) *Service {
	return &Service{api: api, inv: inv, logger: logutil.NoopIfNil(logger)}
}

// Send validates and sends an invitation.
func (s *Service) Send(ctx context.Context, a portalapi.Auth, f Form) (*portalapi.Invitation, error) {
	if err := f.Check(); err != nil {
		return nil, err
	}
	mode := f.Mode
	if mode == "" && f.Role == portalapi.RoleInstaller {
		mode = ModeStandard
	}
	inv, err := s.api.SendInvitation(ctx, a, portalapi.InvitationRequest{
		InviteeEmail: f.InviteeEmail,
		Name:         f.Name,
		Phone:        f.Phone,
		Role:         f.Role,
		Mode:         mode,
		Message:      f.Message,
	})
	if err != nil {
		return nil, err
	}
	logutil.Ctx(ctx).Info("invitation sent", "role", f.Role, "mode", mode)
	return inv, nil
}

// List returns the caller's sent invitations.
func (s *Service) List(ctx context.Context, a portalapi.Auth) ([]portalapi.Invitation, error) {
	return s.api.ListInvitations(ctx, a)
}

// Accept accepts an invitation by referral code as the invitee.
func (s *Service) Accept(ctx context.Context, a portalapi.Auth, code string) (*portalapi.Invitation, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, validate.Field("referralCode", "is required")
	}
	inv, err := s.api.AcceptInvitation(ctx, a, code)
	if portalapi.IsNotFound(err) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, code)
	}
	if err != nil {
		return nil, err
	}
	if s.inv != nil {
		s.inv.Invalidate(ctx, a.UserID)
	}
	return inv, nil
}

// Terminate cancels a pending invitation the caller sent.
func (s *Service) Terminate(ctx context.Context, a portalapi.Auth, code string) (*portalapi.Invitation, error) {
	list, err := s.api.ListInvitations(ctx, a)
	if err != nil {
		return nil, err
	}
	var current *portalapi.Invitation
	for i := range list {
		if list[i].ReferralCode == code {
			current = &list[i]
			break
		}
	}
	if current == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, code)
	}
	if !CanTransition(current.Status, portalapi.InvitationTerminated) {
		return nil, fmt.Errorf("%w: status %s", ErrFinal, current.Status)
	}
	inv, err := s.api.TerminateInvitation(ctx, a, code)
	if err != nil {
		return nil, err
	}
	logutil.Ctx(ctx).Info("invitation terminated", "referral_code", code)
	return inv, nil
}

// AssignInstaller assigns an installer to one of the caller's facilities.
func (s *Service) AssignInstaller(ctx context.Context, a portalapi.Auth, facilityID, installerID string) (*portalapi.Facility, error) {
	if strings.TrimSpace(installerID) == "" {
		return nil, validate.Field("installerId", "is required")
	}
	f, err := s.api.AssignInstaller(ctx, a, facilityID, installerID)
	if err != nil {
		return nil, err
	}
	if s.inv != nil {
		s.inv.Invalidate(ctx, a.UserID)
	}
	return f, nil
}
