package redemption

import (
	"context"
	"testing"

	"github.com/gloriousnetworker/dcarbon-portal/internal/components/portalapi"
	"github.com/gloriousnetworker/dcarbon-portal/internal/components/validate"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		points    int64
		available int64
		wantErr   bool
	}{
		{"at minimum", 3000, 5000, false},
		{"below minimum", 2999, 5000, true},
		{"all available", 5000, 5000, false},
		{"above available", 5001, 5000, true},
		{"zero", 0, 5000, true},
		{"minimum above balance", 3000, 2000, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.points, tt.available, DefaultMinimumPoints)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !validate.IsValidation(err) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestAmount(t *testing.T) {
	tests := []struct {
		points int64
		rate   float64
		want   string
	}{
		{3000, 0.5, "$15.00"},
		{3000, 1, "$30.00"},
		{4321, 0.35, "$15.12"},
		{10000, 0.75, "$75.00"},
		{3333, 0.333, "$11.10"},
	}
	for _, tt := range tests {
		if got := FormatCents(AmountCents(tt.points, DefaultPointValueCents, tt.rate)); got != tt.want {
			t.Errorf("amount(%d, %v) = %s, want %s", tt.points, tt.rate, got, tt.want)
		}
	}
	if got := FormatCents(-5); got != "-$0.05" {
		t.Errorf("FormatCents(-5) = %s", got)
	}
}

type fakeAPI struct {
	balance  portalapi.PointsBalance
	requests []portalapi.RedeemRequest
}

func (f *fakeAPI) PointsBalance(context.Context, portalapi.Auth) (*portalapi.PointsBalance, error) {
	b := f.balance
	return &b, nil
}

func (f *fakeAPI) RedeemPoints(_ context.Context, _ portalapi.Auth, req portalapi.RedeemRequest) (*portalapi.Redemption, error) {
	f.requests = append(f.requests, req)
	return &portalapi.Redemption{ID: "red-1", Points: req.Points, AmountCents: req.AmountCents, Status: "PENDING"}, nil
}

func TestService_Redeem(t *testing.T) {
	api := &fakeAPI{balance: portalapi.PointsBalance{Available: 4000, CommissionRate: 0.5}}
	svc := NewService(api, 0, 0, nil)
	ctx := context.Background()
	auth := portalapi.Auth{UserID: "user-1"}

	r, q, err := svc.Redeem(ctx, auth, 3000)
	if err != nil {
		t.Fatalf("Redeem() error = %v", err)
	}
	if q.Amount != "$15.00" || r.AmountCents != 1500 {
		t.Errorf("quote %+v, redemption %+v", q, r)
	}

	if _, _, err := svc.Redeem(ctx, auth, 4500); !validate.IsValidation(err) {
		t.Errorf("expected validation error above balance, got %v", err)
	}
	if _, _, err := svc.Redeem(ctx, auth, 2500); !validate.IsValidation(err) {
		t.Errorf("expected validation error below minimum, got %v", err)
	}
	if len(api.requests) != 1 {
		t.Errorf("rejected redemptions must not be sent, got %d requests", len(api.requests))
	}
}
