package portal

import (
	"net/http"
	"strconv"

	"github.com/gloriousnetworker/dcarbon-portal/internal/components/api"
	"github.com/gloriousnetworker/dcarbon-portal/internal/components/portalapi"
	"github.com/gloriousnetworker/dcarbon-portal/internal/components/redemption"
	"github.com/gloriousnetworker/dcarbon-portal/internal/components/validate"
)

// RedeemRequest is the request body for a redemption.
type RedeemRequest struct {
	Points int64 `json:"points"`
}

// RedeemResponse is a submitted redemption with the payout it was quoted.
type RedeemResponse struct {
	Redemption *portalapi.Redemption `json:"redemption"`
	Quote      *redemption.Quote     `json:"quote"`
}

// pointsBalance handles GET /api/points.
func (s *Service) pointsBalance(w http.ResponseWriter, r *http.Request) {
	b, err := s.deps.Points.Balance(r.Context(), caller(r).Auth())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// pointsQuote handles GET /api/points/quote?points=N.
func (s *Service) pointsQuote(w http.ResponseWriter, r *http.Request) {
	points, err := strconv.ParseInt(r.URL.Query().Get("points"), 10, 64)
	if err != nil {
		api.WriteDomainError(w, r, validate.Field("points", "must be a whole number"))
		return
	}
	q, err := s.deps.Points.Quote(r.Context(), caller(r).Auth(), points)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// redeemPoints handles POST /api/points/redeem.
func (s *Service) redeemPoints(w http.ResponseWriter, r *http.Request) {
	var req RedeemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	red, q, err := s.deps.Points.Redeem(r.Context(), caller(r).Auth(), req.Points)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RedeemResponse{Redemption: red, Quote: q})
}
