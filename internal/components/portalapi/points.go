package portalapi

import (
	"context"
	"net/http"
)

// PointsBalance returns the caller's points account.
func (c *Client) PointsBalance(ctx context.Context, a Auth) (*PointsBalance, error) {
	var b PointsBalance
	err := c.do(ctx, call{method: http.MethodGet, path: "/api/revenue/points/" + esc(a.UserID), auth: &a}, &b)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// RedeemPoints records a redemption.
func (c *Client) RedeemPoints(ctx context.Context, a Auth, req RedeemRequest) (*Redemption, error) {
	var r Redemption
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/api/revenue/redeem-points/" + esc(a.UserID),
		auth:   &a,
		body:   req,
	}, &r)
	if err != nil {
		return nil, err
	}
	return &r, nil
}
