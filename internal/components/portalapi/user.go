package portalapi

import (
	"context"
	"encoding/json"
	"net/http"
)

// Login authenticates with email and password. raw is the undecoded data
// member, kept because the UI wants it back verbatim.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, json.RawMessage, error) {
	var raw json.RawMessage
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/api/user/login",
		body:   map[string]string{"email": email, "password": password},
	}, &raw)
	if err != nil {
		return nil, nil, err
	}
	var res LoginResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, nil, err
	}
	return &res, raw, nil
}

// GetUser fetches the caller's account.
func (c *Client) GetUser(ctx context.Context, a Auth) (*User, error) {
	var u User
	err := c.do(ctx, call{method: http.MethodGet, path: "/api/user/get-one-user/" + esc(a.UserID), auth: &a}, &u)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CheckAgreements returns the terms/signature status.
func (c *Client) CheckAgreements(ctx context.Context, a Auth) (*AgreementStatus, error) {
	var s AgreementStatus
	err := c.do(ctx, call{method: http.MethodGet, path: "/api/user/check-agreements/" + esc(a.UserID), auth: &a}, &s)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// AcceptAgreement records terms acceptance.
func (c *Client) AcceptAgreement(ctx context.Context, a Auth) error {
	return c.do(ctx, call{
		method: http.MethodPut,
		path:   "/api/user/accept-user-agreement-terms/" + esc(a.UserID),
		auth:   &a,
		body:   map[string]bool{"termsAccepted": true},
	}, nil)
}

// UploadSignature stores the agreement signature image.
func (c *Client) UploadSignature(ctx context.Context, a Auth, sig File) error {
	return c.do(ctx, call{
		method: http.MethodPut,
		path:   "/api/user/update-user-agreement/" + esc(a.UserID),
		auth:   &a,
		files:  map[string]File{"signature": sig},
	}, nil)
}

// GetFinancialInfo fetches the owner's financial information.
func (c *Client) GetFinancialInfo(ctx context.Context, a Auth) (*FinancialInfoResponse, error) {
	var f FinancialInfoResponse
	err := c.do(ctx, call{method: http.MethodGet, path: "/api/user/financial-info/" + esc(a.UserID), auth: &a}, &f)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// SubmitFinancialInfo stores the owner's financial information.
func (c *Client) SubmitFinancialInfo(ctx context.Context, a Auth, info FinancialInfo) error {
	return c.do(ctx, call{
		method: http.MethodPut,
		path:   "/api/user/financial-info/" + esc(a.UserID),
		auth:   &a,
		body:   info,
	}, nil)
}

// RegisterCommercial submits the commercial entity form.
func (c *Client) RegisterCommercial(ctx context.Context, a Auth, reg CommercialRegistration) (*User, error) {
	var u User
	err := c.do(ctx, call{
		method: http.MethodPut,
		path:   "/api/user/commercial-registration/" + esc(a.UserID),
		auth:   &a,
		body:   reg,
	}, &u)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// RegisterPartner submits the partner form.
func (c *Client) RegisterPartner(ctx context.Context, a Auth, reg PartnerRegistration) (*User, error) {
	var u User
	err := c.do(ctx, call{
		method: http.MethodPut,
		path:   "/api/user/partner-registration/" + esc(a.UserID),
		auth:   &a,
		body:   reg,
	}, &u)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ValidateReferralCode checks a referral code. raw is the undecoded answer.
func (c *Client) ValidateReferralCode(ctx context.Context, a Auth, code string) (*ReferralValidation, json.RawMessage, error) {
	var raw json.RawMessage
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/api/user/validate-referral-code",
		auth:   &a,
		body:   map[string]string{"referralCode": code},
	}, &raw)
	if err != nil {
		return nil, nil, err
	}
	v := ReferralValidation{Valid: true}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, nil, err
		}
	}
	return &v, raw, nil
}

// UtilityAuthStatus lists the user's utility authorizations.
func (c *Client) UtilityAuthStatus(ctx context.Context, a Auth) (UtilityAuthorizations, error) {
	var list UtilityAuthorizations
	err := c.do(ctx, call{method: http.MethodGet, path: "/api/utility-auth/" + esc(a.UserID), auth: &a}, &list)
	if err != nil {
		return nil, err
	}
	return list, nil
}
