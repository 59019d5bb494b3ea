package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gloriousnetworker/dcarbon-portal/internal/components/api"
	"github.com/gloriousnetworker/dcarbon-portal/internal/platform/config"
)

// fakeBackend serves the remote endpoints the tests call.
type fakeBackend struct {
	revoked atomic.Bool
	logins  atomic.Int32
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/api/user/login":
		b.logins.Add(1)
		var body struct{ Email, Password string }
		json.NewDecoder(r.Body).Decode(&body)
		if body.Password != "pw" {
			w.WriteHeader(http.StatusUnauthorized)
			io.WriteString(w, `{"status":"fail","message":"Invalid email or password"}`)
			return
		}
		io.WriteString(w, `{"status":"success","message":"ok","data":{
			"user":{"id":"u-1","email":"owner@example.test","role":"OWNER","userType":"COMMERCIAL"},
			"token":"opaque-token"}}`)

	case r.Method == http.MethodGet && r.URL.Path == "/api/facility/get-user-facilities-by-userId/u-1":
		if b.revoked.Load() || r.Header.Get("Authorization") != "Bearer opaque-token" {
			w.WriteHeader(http.StatusUnauthorized)
			io.WriteString(w, `{"status":"fail","message":"jwt expired"}`)
			return
		}
		io.WriteString(w, `{"status":"success","data":{"facilities":[{"id":"fac-1","facilityName":"Roof array"}]}}`)

	default:
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"status":"fail","message":"no route"}`)
	}
}

type testPortal struct {
	URL     string
	Client  *http.Client
	Backend *fakeBackend
}

func startTestPortal(t *testing.T, mutate func(*config.Config)) *testPortal {
	t.Helper()

	backend := &fakeBackend{}
	remote := httptest.NewServer(backend)
	t.Cleanup(remote.Close)

	cfg := config.DevConfig()
	cfg.RemoteAPI.BaseURL = remote.URL
	cfg.RemoteAPI.LegacyBaseURL = remote.URL
	cfg.RemoteAPI.MaxRetries = 0
	if mutate != nil {
		mutate(cfg)
	}

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	ctx, cancel := context.WithCancel(context.Background())

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		cancel()
		t.Fatalf("failed to build portal: %v", err)
	}
	ts := httptest.NewServer(a.server.Handler())
	t.Cleanup(func() {
		ts.Close()
		a.server.Shutdown(context.Background())
		a.close()
		cancel()
	})

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("failed to create cookie jar: %v", err)
	}
	return &testPortal{URL: ts.URL, Client: &http.Client{Jar: jar}, Backend: backend}
}

func (p *testPortal) do(t *testing.T, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, p.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	return resp, raw
}

func reasonOf(t *testing.T, raw []byte) string {
	t.Helper()
	var env api.ErrorEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("expected error envelope, got %s", raw)
	}
	return env.Error.ReasonCode
}

func TestHealthEndpoint(t *testing.T) {
	p := startTestPortal(t, nil)

	resp, raw := p.do(t, http.MethodGet, "/healthz", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}
	var health api.HealthResponse
	if err := json.Unmarshal(raw, &health); err != nil {
		t.Fatalf("failed to decode health: %v", err)
	}
	if health.Status != "ok" {
		t.Errorf("expected status ok, got %q", health.Status)
	}
}

func TestSessionLifecycle(t *testing.T) {
	p := startTestPortal(t, nil)

	resp, raw := p.do(t, http.MethodGet, "/api/facilities", "")
	if resp.StatusCode != http.StatusUnauthorized || reasonOf(t, raw) != api.ReasonUnauthenticated {
		t.Fatalf("expected unauthenticated 401, got %d %s", resp.StatusCode, raw)
	}

	resp, raw = p.do(t, http.MethodPost, "/api/session/login", `{"email":"owner@example.test","password":"nope"}`)
	if resp.StatusCode != http.StatusUnauthorized || reasonOf(t, raw) != api.ReasonInvalidCredentials {
		t.Fatalf("expected invalid credentials, got %d %s", resp.StatusCode, raw)
	}

	resp, raw = p.do(t, http.MethodPost, "/api/session/login", `{"email":"owner@example.test","password":"pw"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login failed: %d %s", resp.StatusCode, raw)
	}
	if strings.Contains(string(raw), "opaque-token") {
		t.Error("login response must not expose the remote token")
	}

	resp, raw = p.do(t, http.MethodGet, "/api/facilities", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected facilities, got %d %s", resp.StatusCode, raw)
	}
	if !strings.Contains(string(raw), `"fac-1"`) {
		t.Errorf("expected fac-1 in %s", raw)
	}

	// the backend rejecting the token ends the portal session
	p.Backend.revoked.Store(true)
	resp, raw = p.do(t, http.MethodGet, "/api/facilities", "")
	if resp.StatusCode != http.StatusUnauthorized || reasonOf(t, raw) != api.ReasonSessionExpired {
		t.Fatalf("expected session_expired, got %d %s", resp.StatusCode, raw)
	}

	p.Backend.revoked.Store(false)
	resp, _ = p.do(t, http.MethodGet, "/api/facilities", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected ended session to stay ended, got %d", resp.StatusCode)
	}
}

func TestLogout(t *testing.T) {
	p := startTestPortal(t, nil)

	if resp, raw := p.do(t, http.MethodPost, "/api/session/login", `{"email":"owner@example.test","password":"pw"}`); resp.StatusCode != http.StatusOK {
		t.Fatalf("login failed: %d %s", resp.StatusCode, raw)
	}
	if resp, _ := p.do(t, http.MethodPost, "/api/session/logout", ""); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204 from logout, got %d", resp.StatusCode)
	}
	if resp, _ := p.do(t, http.MethodGet, "/api/session", ""); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", resp.StatusCode)
	}
}

func TestLoginRateLimit(t *testing.T) {
	p := startTestPortal(t, func(cfg *config.Config) {
		cfg.LoginRateLimit = config.RateLimitConfig{RequestsPerWindow: 2, WindowSeconds: 60}
	})

	body := `{"email":"owner@example.test","password":"nope"}`
	for i := 0; i < 2; i++ {
		if resp, _ := p.do(t, http.MethodPost, "/api/session/login", body); resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d", i+1, resp.StatusCode)
		}
	}

	resp, raw := p.do(t, http.MethodPost, "/api/session/login", body)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d %s", resp.StatusCode, raw)
	}
	if resp.Header.Get("Retry-After") != "60" {
		t.Errorf("expected Retry-After 60, got %q", resp.Header.Get("Retry-After"))
	}
	if got := p.Backend.logins.Load(); got != 2 {
		t.Errorf("expected the limited attempt to stay local, backend saw %d logins", got)
	}

	// other routes are not limited
	if resp, _ := p.do(t, http.MethodGet, "/healthz", ""); resp.StatusCode != http.StatusOK {
		t.Errorf("expected health to stay reachable, got %d", resp.StatusCode)
	}
}
