package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/gloriousnetworker/dcarbon-portal/internal/platform/http/auth"
	httpmw "github.com/gloriousnetworker/dcarbon-portal/internal/platform/http/middleware"
)

// RouteGroup defines an endpoint group with its auth requirements.
type RouteGroup struct {
	Name         string
	PathPrefix   string
	RequiresAuth bool
}

// routeGroups is the single source of truth for auth gating.
var routeGroups = []RouteGroup{
	{Name: "health", PathPrefix: "/healthz", RequiresAuth: false},
	{Name: "api", PathPrefix: "/api", RequiresAuth: true}, // exceptions via Service.Unprotected()
}

// GetRouteGroups returns the route group definitions for testing.
func GetRouteGroups() []RouteGroup {
	return routeGroups
}

// IsAuthRequired reports whether path needs a session. Unprotected paths of
// mounted services are exempt; unknown paths require auth.
func IsAuthRequired(path string, mountedServices []Service) bool {
	for _, svc := range mountedServices {
		if svc == nil {
			continue
		}
		base := ""
		if p := svc.Prefix(); p != "" {
			base = "/" + p
		}
		for _, unprotected := range svc.Unprotected() {
			if pathMatchesPrefix(path, base+unprotected) {
				return false
			}
		}
	}

	for _, rg := range routeGroups {
		if pathMatchesPrefix(path, rg.PathPrefix) {
			return rg.RequiresAuth
		}
	}
	return true
}

// pathMatchesPrefix checks if path equals or is a subpath of prefix.
func pathMatchesPrefix(path, prefix string) bool {
	if path == prefix {
		return true
	}
	return len(path) > len(prefix) && path[:len(prefix)] == prefix && path[len(prefix)] == '/'
}

// mountService mounts a service and tracks it for shutdown.
func (s *Server) mountService(r chi.Router, svc Service) {
	if svc == nil {
		return
	}
	if prefix := svc.Prefix(); prefix != "" {
		r.Mount("/"+prefix, svc.Handler())
	} else {
		r.Mount("/", svc.Handler())
	}
	s.mountedServices = append(s.mountedServices, svc)
}

// setupRoutes creates the chi router with all services mounted.
func (s *Server) setupRoutes() chi.Router {
	r := chi.NewRouter()

	// Order is fixed: RequestID -> request logger -> access log -> recoverer -> auth gate
	r.Use(chimw.RequestID)
	r.Use(httpmw.RequestLoggerMiddleware(s.logger))
	r.Use(httpmw.AccessLogMiddleware(s.logger))
	r.Use(chimw.Recoverer)

	// mountedServices is read at request time, after mounting below.
	r.Use(auth.NewAuthGate(auth.AuthGateConfig{
		RequireAuth: func(path string) bool { return IsAuthRequired(path, s.mountedServices) },
		Log:         s.logger,
		Sessions:    s.opts.Sessions,
		CookieName:  s.cfg.Session.CookieName,
	}))

	health := s.opts.Health
	if health == nil {
		health = http.HandlerFunc(staticHealth)
	}
	r.Method(http.MethodGet, "/healthz", health)

	for _, svc := range s.opts.Services {
		s.mountService(r, svc)
	}

	return r
}

func staticHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
