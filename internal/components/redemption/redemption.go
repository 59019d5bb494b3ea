// Package redemption converts earned points to cash payouts.
package redemption

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/gloriousnetworker/dcarbon-portal/internal/components/portalapi"
	"github.com/gloriousnetworker/dcarbon-portal/internal/components/validate"
	"github.com/gloriousnetworker/dcarbon-portal/internal/platform/logutil"
)

// Defaults: 3000 points minimum, one point is worth one cent.
const (
	DefaultMinimumPoints   = 3000
	DefaultPointValueCents = 1
)

// Validate checks a redemption amount against the minimum and the balance.
func Validate(points, available, minimum int64) error {
	if points < minimum {
		return validate.Field("points", fmt.Sprintf("must be at least %d", minimum))
	}
	if points > available {
		return validate.Field("points", fmt.Sprintf("must not exceed the available %d points", available))
	}
	return nil
}

// AmountCents is the user's payout in cents for points at the commission
// rate, rounded to the nearest cent.
func AmountCents(points, pointValueCents int64, commissionRate float64) int64 {
	return int64(math.Round(float64(points*pointValueCents) * commissionRate))
}

// FormatCents formats cents as dollars, e.g. 1500 -> "$15.00".
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}

// API is the part of the remote client redemption uses.
type API interface {
	PointsBalance(ctx context.Context, a portalapi.Auth) (*portalapi.PointsBalance, error)
	RedeemPoints(ctx context.Context, a portalapi.Auth, req portalapi.RedeemRequest) (*portalapi.Redemption, error)
}

// Quote is the computed payout for a redemption.
type Quote struct {
	Points         int64   `json:"points"`
	Available      int64   `json:"available_points"`
	Minimum        int64   `json:"minimum_points"`
	CommissionRate float64 `json:"commission_rate"`
	AmountCents    int64   `json:"amount_cents"`
	Amount         string  `json:"amount"`
}

// Service validates and submits redemptions.
type Service struct {
	api             API
	minimum         int64
	pointValueCents int64
	logger          *slog.Logger
}

// NewService creates a redemption service. Zero values select the defaults.
func NewService(api API, minimum, pointValueCents int64, logger *slog.Logger) *Service {
	if minimum <= 0 {
		minimum = DefaultMinimumPoints
	}
	if pointValueCents <= 0 {
		pointValueCents = DefaultPointValueCents
	}
	return &Service{api: api, minimum: minimum, pointValueCents: pointValueCents, logger: logutil.NoopIfNil(logger)}
}

// Balance returns the caller's points account.
func (s *Service) Balance(ctx context.Context, a portalapi.Auth) (*portalapi.PointsBalance, error) {
	return s.api.PointsBalance(ctx, a)
}

// Quote computes the payout for points against the current balance.
func (s *Service) Quote(ctx context.Context, a portalapi.Auth, points int64) (*Quote, error) {
	bal, err := s.api.PointsBalance(ctx, a)
	if err != nil {
		return nil, err
	}
	if err := Validate(points, bal.Available, s.minimum); err != nil {
		return nil, err
	}
	cents := AmountCents(points, s.pointValueCents, bal.CommissionRate)
	return &Quote{
		Points:         points,
		Available:      bal.Available,
		Minimum:        s.minimum,
		CommissionRate: bal.CommissionRate,
		AmountCents:    cents,
		Amount:         FormatCents(cents),
	}, nil
}

// Redeem validates points and submits the redemption.
func (s *Service) Redeem(ctx context.Context, a portalapi.Auth, points int64) (*portalapi.Redemption, *Quote, error) {
	q, err := s.Quote(ctx, a, points)
	if err != nil {
		return nil, nil, err
	}
	r, err := s.api.RedeemPoints(ctx, a, portalapi.RedeemRequest{Points: q.Points, AmountCents: q.AmountCents})
	if err != nil {
		return nil, nil, err
	}
	logutil.Ctx(ctx).Info("points redeemed", "points", q.Points, "amount_cents", q.AmountCents, "redemption_id", r.ID)
	return r, q, nil
}
