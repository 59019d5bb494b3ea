package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gloriousnetworker/dcarbon-portal/internal/platform/cache"
)

// HealthResponse is the body of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Cache  string `json:"cache,omitempty"`
}

const healthProbeKey = "healthz-probe"

// HealthHandler serves GET /healthz. When c is set, a cache read that fails
// with anything other than a miss reports the service as degraded.
func HealthHandler(c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{Status: "ok"}
		status := http.StatusOK
		if c != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			_, err := c.Get(ctx, healthProbeKey)
			cancel()
			resp.Cache = "ok"
			if err != nil && !errors.Is(err, cache.ErrNotFound) && !errors.Is(err, cache.ErrExpired) {
				resp.Status = "degraded"
				resp.Cache = "unavailable"
				status = http.StatusServiceUnavailable
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(resp)
	}
}
