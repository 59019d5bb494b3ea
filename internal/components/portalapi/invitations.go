package portalapi

import (
	"context"
	"net/http"
)

// SendInvitation sends one invitation from the caller.
func (c *Client) SendInvitation(ctx context.Context, a Auth, req InvitationRequest) (*Invitation, error) {
	var inv Invitation
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/api/user/invite-user/" + esc(a.UserID),
		auth:   &a,
		body:   map[string][]InvitationRequest{"invitees": {req}},
	}, &inv)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// ListInvitations returns the invitations the caller sent.
func (c *Client) ListInvitations(ctx context.Context, a Auth) ([]Invitation, error) {
	var out struct {
		Referrals []Invitation `json:"referrals"`
	}
	err := c.do(ctx, call{
		method: http.MethodGet,
		path:   "/api/user/get-users-referrals/" + esc(a.UserID),
		auth:   &a,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Referrals, nil
}

// AcceptInvitation accepts an invitation by referral code for the caller.
func (c *Client) AcceptInvitation(ctx context.Context, a Auth, code string) (*Invitation, error) {
	var inv Invitation
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/api/user/accept-invitation/" + esc(a.UserID),
		auth:   &a,
		body:   map[string]string{"referralCode": code},
	}, &inv)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// TerminateInvitation terminates a pending invitation.
func (c *Client) TerminateInvitation(ctx context.Context, a Auth, code string) (*Invitation, error) {
	var inv Invitation
	err := c.do(ctx, call{
		method: http.MethodPut,
		path:   "/api/user/terminate-invitation/" + esc(code),
		auth:   &a,
	}, &inv)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}
