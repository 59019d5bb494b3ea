// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"strings"
)

// Config holds the portald configuration.
type Config struct {
	// Mode is the operating mode: strict or dev.
	Mode string `toml:"mode"`

	// ListenAddr is the address to listen on.
	// Example: ":8080"
	ListenAddr string `toml:"listen_addr"`

	// TLS configuration for the inbound listener.
	TLS TLSConfig `toml:"tls"`

	// RemoteAPI configures the DCarbon REST backend.
	RemoteAPI RemoteAPIConfig `toml:"remote_api"`

	// Session configuration
	Session SessionConfig `toml:"session"`

	// Store configuration
	Store StoreConfig `toml:"store"`

	// Cache configuration
	Cache CacheConfig `toml:"cache"`

	// Progress configuration for stage-progress evaluation.
	Progress ProgressConfig `toml:"progress"`

	// Support configuration for reply polling.
	Support SupportConfig `toml:"support"`

	// Redemption configuration for points redemption.
	Redemption RedemptionConfig `toml:"redemption"`

	// UtilityAuth configuration for the third-party utility authorization portal.
	UtilityAuth UtilityAuthConfig `toml:"utility_auth"`

	// LoginRateLimit bounds login attempts per client IP.
	LoginRateLimit RateLimitConfig `toml:"login_rate_limit"`

	// Logging configuration
	Logging LoggingConfig `toml:"logging"`
}

// TLSConfig holds inbound TLS settings.
type TLSConfig struct {
	// Mode is one of: off, static
	Mode string `toml:"mode"`

	// CertFile and KeyFile for static mode
	CertFile string `toml:"cert_file"`
	KeyFile  string `toml:"key_file"`
}

// RemoteAPIConfig holds settings for calls to the DCarbon backend.
type RemoteAPIConfig struct {
	// BaseURL is the primary API origin.
	// Example: "https://services.dcarbon.solutions"
	BaseURL string `toml:"base_url"`

	// LegacyBaseURL serves the endpoints that were never migrated (support tickets).
	LegacyBaseURL string `toml:"legacy_base_url"`

	// TimeoutMS is the overall request timeout in milliseconds
	TimeoutMS int `toml:"timeout_ms"`

	// ConnectTimeoutMS is the connection timeout in milliseconds
	ConnectTimeoutMS int `toml:"connect_timeout_ms"`

	// MaxRedirects is the maximum number of same-host redirects to follow
	MaxRedirects int `toml:"max_redirects"`

	// MaxRetries bounds retries of idempotent requests. 0 disables retries.
	MaxRetries int `toml:"max_retries"`

	// MaxResponseBytes is the maximum response body size
	MaxResponseBytes int64 `toml:"max_response_bytes"`

	// MaxUploadBytes is the maximum accepted document upload size
	MaxUploadBytes int64 `toml:"max_upload_bytes"`

	// InsecureSkipVerify disables TLS verification (dev-only)
	InsecureSkipVerify bool `toml:"insecure_skip_verify"`
}

// SessionConfig holds portal session settings.
type SessionConfig struct {
	// TTLSeconds caps session lifetime when the remote token carries no exp claim.
	TTLSeconds int `toml:"ttl_seconds"`

	// CookieName is the cookie carrying the session ID.
	CookieName string `toml:"cookie_name"`

	// CookieSecure sets the Secure attribute on the session cookie.
	CookieSecure bool `toml:"cookie_secure"`
}

// StoreConfig selects the persistence driver.
type StoreConfig struct {
	// Driver is one of: memory, sqlite, postgres
	Driver string `toml:"driver"`

	// DataDir holds the sqlite database file.
	DataDir string `toml:"data_dir"`

	// DSN is the postgres connection string.
	DSN string `toml:"dsn"`
}

// CacheConfig holds cache settings.
type CacheConfig struct {
	// Driver is the cache driver name: memory (default) or valkey.
	Driver string `toml:"driver"`

	// Drivers holds per-driver configuration.
	// Example: [cache.drivers.valkey] addr = "localhost:6379"
	Drivers map[string]any `toml:"drivers"`
}

// ProgressConfig holds stage-progress settings.
type ProgressConfig struct {
	// CacheTTLSeconds is how long an evaluated progress result is reused. 0 disables caching.
	CacheTTLSeconds int `toml:"cache_ttl_seconds"`

	// Concurrency bounds the stage checks run at once for one evaluation.
	Concurrency int `toml:"concurrency"`
}

// SupportConfig holds contact-support settings.
type SupportConfig struct {
	// PollIntervalSeconds is the fixed reply polling interval. Default: 30.
	PollIntervalSeconds int `toml:"poll_interval_seconds"`
}

// RedemptionConfig holds points redemption settings.
type RedemptionConfig struct {
	// MinimumPoints is the smallest redeemable amount. Default: 3000.
	MinimumPoints int64 `toml:"minimum_points"`

	// PointValueCents is the cash value of one point in cents. Default: 1.
	PointValueCents int64 `toml:"point_value_cents"`
}

// UtilityAuthConfig holds the utility authorization portal URLs.
type UtilityAuthConfig struct {
	// PortalURL is the embedded (iframe) authorization form.
	PortalURL string `toml:"portal_url"`

	// NewTabURL is the form opened in a separate tab.
	NewTabURL string `toml:"new_tab_url"`
}

// RateLimitConfig defines a fixed-window request limit.
type RateLimitConfig struct {
	// RequestsPerWindow is the number of requests allowed per window. 0 disables limiting.
	RequestsPerWindow int64 `toml:"requests_per_window"`

	// WindowSeconds is the window length.
	WindowSeconds int `toml:"window_seconds"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	// Default: info in strict mode, debug in dev mode.
	Level string `toml:"level"`
}

// Redacted returns a string representation of the config with secrets redacted.
func (c *Config) Redacted() string {
	var sb strings.Builder
	sb.WriteString("Config{\n")
	sb.WriteString(fmt.Sprintf("  Mode: %q,\n", c.Mode))
	sb.WriteString(fmt.Sprintf("  ListenAddr: %q,\n", c.ListenAddr))
	sb.WriteString("  TLS: {\n")
	sb.WriteString(fmt.Sprintf("    Mode: %q,\n", c.TLS.Mode))
	sb.WriteString(fmt.Sprintf("    CertFile: %q,\n", c.TLS.CertFile))
	sb.WriteString(fmt.Sprintf("    KeyFile: %q,\n", c.TLS.KeyFile))
	sb.WriteString("  },\n")
	sb.WriteString("  RemoteAPI: {\n")
	sb.WriteString(fmt.Sprintf("    BaseURL: %q,\n", c.RemoteAPI.BaseURL))
	sb.WriteString(fmt.Sprintf("    LegacyBaseURL: %q,\n", c.RemoteAPI.LegacyBaseURL))
	sb.WriteString(fmt.Sprintf("    TimeoutMS: %d,\n", c.RemoteAPI.TimeoutMS))
	sb.WriteString(fmt.Sprintf("    MaxRetries: %d,\n", c.RemoteAPI.MaxRetries))
	sb.WriteString(fmt.Sprintf("    MaxResponseBytes: %d,\n", c.RemoteAPI.MaxResponseBytes))
	sb.WriteString(fmt.Sprintf("    InsecureSkipVerify: %v,\n", c.RemoteAPI.InsecureSkipVerify))
	sb.WriteString("  },\n")
	sb.WriteString("  Session: {\n")
	sb.WriteString(fmt.Sprintf("    TTLSeconds: %d,\n", c.Session.TTLSeconds))
	sb.WriteString(fmt.Sprintf("    CookieName: %q,\n", c.Session.CookieName))
	sb.WriteString("  },\n")
	sb.WriteString("  Store: {\n")
	sb.WriteString(fmt.Sprintf("    Driver: %q,\n", c.Store.Driver))
	sb.WriteString(fmt.Sprintf("    DataDir: %q,\n", c.Store.DataDir))
	if c.Store.DSN != "" {
		sb.WriteString("    DSN: [REDACTED],\n")
	}
	sb.WriteString("  },\n")
	sb.WriteString(fmt.Sprintf("  Cache: {Driver: %q},\n", c.Cache.Driver))
	sb.WriteString(fmt.Sprintf("  Progress: {CacheTTLSeconds: %d, Concurrency: %d},\n", c.Progress.CacheTTLSeconds, c.Progress.Concurrency))
	sb.WriteString(fmt.Sprintf("  Support: {PollIntervalSeconds: %d},\n", c.Support.PollIntervalSeconds))
	sb.WriteString(fmt.Sprintf("  Redemption: {MinimumPoints: %d, PointValueCents: %d},\n", c.Redemption.MinimumPoints, c.Redemption.PointValueCents))
	sb.WriteString(fmt.Sprintf("  LoginRateLimit: {RequestsPerWindow: %d, WindowSeconds: %d},\n", c.LoginRateLimit.RequestsPerWindow, c.LoginRateLimit.WindowSeconds))
	sb.WriteString(fmt.Sprintf("  Logging: {Level: %q},\n", c.Logging.Level))
	sb.WriteString("}")
	return sb.String()
}
