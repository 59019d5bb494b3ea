package invitations

import (
	"context"
	"errors"
	"testing"

	"github.com/gloriousnetworker/dcarbon-portal/internal/components/portalapi"
	"github.com/gloriousnetworker/dcarbon-portal/internal/components/validate"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{"PENDING", "ACCEPTED", true},
		{"PENDING", "TERMINATED", true},
		{"pending", "accepted", true},
		{"PENDING", "PENDING", false},
		{"ACCEPTED", "TERMINATED", false},
		{"TERMINATED", "ACCEPTED", false},
		{"ACCEPTED", "PENDING", false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestFormCheck(t *testing.T) {
	tests := []struct {
		name    string
		form    Form
		wantErr bool
	}{
		{"owner", Form{InviteeEmail: "a@b.co", Role: "owner"}, false},
		{"installer epc", Form{InviteeEmail: "a@b.co", Role: "INSTALLER", Mode: "epc"}, false},
		{"operator epc", Form{InviteeEmail: "a@b.co", Role: "OPERATOR", Mode: "EPC"}, true},
		{"bad email", Form{InviteeEmail: "nobody", Role: "OWNER"}, true},
		{"bad role", Form{InviteeEmail: "a@b.co", Role: "ADMIN"}, true},
		{"bad phone", Form{InviteeEmail: "a@b.co", Role: "OWNER", Phone: "12"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.form.Check()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Check() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !validate.IsValidation(err) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

type fakeAPI struct {
	sent        []portalapi.InvitationRequest
	invitations []portalapi.Invitation
	terminated  []string
	assigned    []string
}

func (f *fakeAPI) SendInvitation(_ context.Context, _ portalapi.Auth, req portalapi.InvitationRequest) (*portalapi.Invitation, error) {
	f.sent = append(f.sent, req)
	return &portalapi.Invitation{ReferralCode: "REF-1", InviteeEmail: req.InviteeEmail, Role: req.Role, Status: portalapi.InvitationPending, Mode: req.Mode}, nil
}

func (f *fakeAPI) ListInvitations(context.Context, portalapi.Auth) ([]portalapi.Invitation, error) {
	return f.invitations, nil
}

func (f *fakeAPI) AcceptInvitation(_ context.Context, _ portalapi.Auth, code string) (*portalapi.Invitation, error) {
	if code == "MISSING" {
		return nil, &portalapi.APIError{StatusCode: 404, Message: "not found"}
	}
	return &portalapi.Invitation{ReferralCode: code, Status: portalapi.InvitationAccepted}, nil
}

func (f *fakeAPI) TerminateInvitation(_ context.Context, _ portalapi.Auth, code string) (*portalapi.Invitation, error) {
	f.terminated = append(f.terminated, code)
	return &portalapi.Invitation{ReferralCode: code, Status: portalapi.InvitationTerminated}, nil
}

func (f *fakeAPI) AssignInstaller(_ context.Context, _ portalapi.Auth, facilityID, installerID string) (*portalapi.Facility, error) {
	f.assigned = append(f.assigned, facilityID+"="+installerID)
	return &portalapi.Facility{ID: facilityID, InstallerID: installerID}, nil
}

type counter struct{ n int }

func (c *counter) Invalidate(context.Context, string) { c.n++ }

func TestService(t *testing.T) {
	api := &fakeAPI{invitations: []portalapi.Invitation{
		{ReferralCode: "P-1", Status: portalapi.InvitationPending},
		{ReferralCode: "A-1", Status: portalapi.InvitationAccepted},
	}}
	inv := &counter{}
	svc := NewService(api, inv, nil)
	ctx := context.Background()
	auth := portalapi.Auth{UserID: "user-1"}

	got, err := svc.Send(ctx, auth, Form{InviteeEmail: " new@example.com ", Role: "installer"})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if got.Mode != ModeStandard || api.sent[0].InviteeEmail != "new@example.com" || api.sent[0].Role != "INSTALLER" {
		t.Errorf("unexpected request %+v", api.sent[0])
	}

	if _, err := svc.Terminate(ctx, auth, "P-1"); err != nil {
		t.Fatalf("Terminate() error = %v", err)
	}
	if _, err := svc.Terminate(ctx, auth, "A-1"); !errors.Is(err, ErrFinal) {
		t.Errorf("accepted invitation is final, got %v", err)
	}
	if _, err := svc.Terminate(ctx, auth, "X-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if len(api.terminated) != 1 {
		t.Errorf("only the pending invitation should be terminated, got %v", api.terminated)
	}

	if _, err := svc.Accept(ctx, auth, "MISSING"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.Accept(ctx, auth, "  "); !validate.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
	if a, err := svc.Accept(ctx, auth, "P-9"); err != nil || a.Status != portalapi.InvitationAccepted {
		t.Errorf("Accept() = %+v, %v", a, err)
	}

	if _, err := svc.AssignInstaller(ctx, auth, "fac-1", "inst-7"); err != nil {
		t.Fatalf("AssignInstaller() error = %v", err)
	}
	if _, err := svc.AssignInstaller(ctx, auth, "fac-1", ""); !validate.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
	if inv.n != 2 {
		t.Errorf("expected 2 progress invalidations, got %d", inv.n)
	}
}
