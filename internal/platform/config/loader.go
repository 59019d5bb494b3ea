package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Mode represents the server operating mode.
type Mode string

const (
	ModeStrict Mode = "strict"
	ModeDev    Mode = "dev"
)

// Default remote API origins.
const (
	DefaultBaseURL       = "https://services.dcarbon.solutions"
	DefaultLegacyBaseURL = "https://dcarbon-server.onrender.com"
)

// ParseMode parses a mode string, returning an error for invalid values.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "strict", "":
		return ModeStrict, nil
	case "dev":
		return ModeDev, nil
	default:
		return "", fmt.Errorf("invalid mode %q: must be one of strict, dev", s)
	}
}

// LoaderOptions controls how configuration is loaded.
type LoaderOptions struct {
	// ConfigPath is the path to a TOML config file (optional).
	// If provided but file is missing or invalid, loading fails.
	ConfigPath string

	// EnvFile is a dotenv file loaded into the process environment when it exists.
	// Variables already set in the environment win over the file.
	EnvFile string

	// ModeFlag is the --mode flag value (overrides config file mode).
	ModeFlag string

	// FlagOverrides are CLI flag values that override config file and env values.
	FlagOverrides FlagOverrides

	// LookupEnv reads environment variables. Defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)

	// Logger is used for warning messages (e.g., undecoded keys).
	// If nil, slog.Default() is used.
	Logger *slog.Logger
}

// FlagOverrides holds CLI flag values that override config file values.
type FlagOverrides struct {
	ListenAddr   *string
	APIBaseURL   *string
	StoreDriver  *string
	StoreDataDir *string
	CacheDriver  *string
	LoggingLevel *string
}

// Environment variables recognized by Load.
const (
	EnvListenAddr   = "PORTAL_LISTEN_ADDR"
	EnvAPIBaseURL   = "PORTAL_API_BASE_URL"
	EnvAPILegacyURL = "PORTAL_API_LEGACY_BASE_URL"
	EnvStoreDriver  = "PORTAL_STORE_DRIVER"
	EnvStoreDSN     = "PORTAL_STORE_DSN"
	EnvCacheDriver  = "PORTAL_CACHE_DRIVER"
	EnvLoggingLevel = "PORTAL_LOG_LEVEL"
)

// Load loads configuration with the following precedence:
//  1. Determine effective mode: --mode flag > mode in config file > default (strict)
//  2. Start from mode preset defaults
//  3. Overlay TOML config file values
//  4. Overlay environment variables (after loading EnvFile, if present)
//  5. Overlay CLI flags
//  6. Validate
//
// Unknown TOML keys produce a warning but do not fail the load.
func Load(opts LoaderOptions) (*Config, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	lookup := opts.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}

	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %s: %w", opts.EnvFile, err)
		}
	}

	var data string
	var probe struct {
		Mode string `toml:"mode"`
	}
	if opts.ConfigPath != "" {
		raw, err := os.ReadFile(opts.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", opts.ConfigPath, err)
		}
		data = string(raw)
		if _, err := toml.Decode(data, &probe); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", opts.ConfigPath, err)
		}
	}

	modeStr := probe.Mode
	if opts.ModeFlag != "" {
		modeStr = opts.ModeFlag
	}
	mode, err := ParseMode(modeStr)
	if err != nil {
		return nil, err
	}

	cfg := presetForMode(mode)

	// Decoding onto the preset keeps preset values for keys the file omits.
	if data != "" {
		md, err := toml.Decode(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", opts.ConfigPath, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, k := range undecoded {
				keys = append(keys, k.String())
			}
			logger.Warn("config file contains undecoded keys", "path", opts.ConfigPath, "keys", keys)
		}
	}
	cfg.Mode = string(mode)

	overlayEnv(cfg, lookup)
	overlayFlags(cfg, opts.FlagOverrides)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// presetForMode returns the base config for a given mode.
func presetForMode(mode Mode) *Config {
	if mode == ModeDev {
		return DevConfig()
	}
	return StrictConfig()
}

// StrictConfig returns production-safe defaults.
func StrictConfig() *Config {
	return &Config{
		Mode:       string(ModeStrict),
		ListenAddr: ":8080",
		TLS: TLSConfig{
			Mode: "off",
		},
		RemoteAPI: RemoteAPIConfig{
			BaseURL:          DefaultBaseURL,
			LegacyBaseURL:    DefaultLegacyBaseURL,
			TimeoutMS:        15000,
			ConnectTimeoutMS: 3000,
			MaxRedirects:     1,
			MaxRetries:       2,
			MaxResponseBytes: 8 << 20,
			MaxUploadBytes:   10 << 20,
		},
		Session: SessionConfig{
			TTLSeconds:   86400,
			CookieName:   "portal_session",
			CookieSecure: true,
		},
		Store: StoreConfig{
			Driver:  "sqlite",
			DataDir: ".portal",
		},
		Cache: CacheConfig{
			Driver: "memory",
		},
		Progress: ProgressConfig{
			CacheTTLSeconds: 30,
			Concurrency:     3,
		},
		Support: SupportConfig{
			PollIntervalSeconds: 30,
		},
		Redemption: RedemptionConfig{
			MinimumPoints:   3000,
			PointValueCents: 1,
		},
		UtilityAuth: UtilityAuthConfig{
			PortalURL: "https://utilityapi.com/authorize/DCarbon_Solutions",
			NewTabURL: "https://main.instapull.io/authenticate/dcarbon",
		},
		LoginRateLimit: RateLimitConfig{
			RequestsPerWindow: 10,
			WindowSeconds:     60,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DevConfig returns development mode defaults.
func DevConfig() *Config {
	cfg := StrictConfig()
	cfg.Mode = string(ModeDev)
	cfg.Session.CookieSecure = false
	cfg.Store.Driver = "memory"
	cfg.RemoteAPI.MaxRedirects = 3
	cfg.Logging.Level = "debug"
	return cfg
}

func overlayEnv(cfg *Config, lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set(EnvListenAddr, &cfg.ListenAddr)
	set(EnvAPIBaseURL, &cfg.RemoteAPI.BaseURL)
	set(EnvAPILegacyURL, &cfg.RemoteAPI.LegacyBaseURL)
	set(EnvStoreDriver, &cfg.Store.Driver)
	set(EnvStoreDSN, &cfg.Store.DSN)
	set(EnvCacheDriver, &cfg.Cache.Driver)
	set(EnvLoggingLevel, &cfg.Logging.Level)
}

func overlayFlags(cfg *Config, f FlagOverrides) {
	set := func(v *string, dst *string) {
		if v != nil && *v != "" {
			*dst = *v
		}
	}
	set(f.ListenAddr, &cfg.ListenAddr)
	set(f.APIBaseURL, &cfg.RemoteAPI.BaseURL)
	set(f.StoreDriver, &cfg.Store.Driver)
	set(f.StoreDataDir, &cfg.Store.DataDir)
	set(f.CacheDriver, &cfg.Cache.Driver)
	set(f.LoggingLevel, &cfg.Logging.Level)
}

func validate(cfg *Config) error {
	switch cfg.TLS.Mode {
	case "off":
	case "static":
		if cfg.TLS.CertFile == "" || cfg.TLS.KeyFile == "" {
			return fmt.Errorf("tls.cert_file and tls.key_file are required for static TLS mode")
		}
	default:
		return fmt.Errorf("invalid tls.mode %q: must be one of off, static", cfg.TLS.Mode)
	}

	switch cfg.Store.Driver {
	case "memory":
	case "sqlite":
		if cfg.Store.DataDir == "" {
			return fmt.Errorf("store.data_dir is required for the sqlite driver")
		}
	case "postgres":
		if cfg.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("invalid store.driver %q: must be one of memory, sqlite, postgres", cfg.Store.Driver)
	}

	switch cfg.Cache.Driver {
	case "memory", "valkey":
	default:
		return fmt.Errorf("invalid cache.driver %q: must be one of memory, valkey", cfg.Cache.Driver)
	}

	switch cfg.Logging.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level %q: must be one of trace, debug, info, warn, error", cfg.Logging.Level)
	}

	for name, raw := range map[string]string{
		"remote_api.base_url":        cfg.RemoteAPI.BaseURL,
		"remote_api.legacy_base_url": cfg.RemoteAPI.LegacyBaseURL,
	} {
		if err := validateOrigin(name, raw); err != nil {
			return err
		}
	}

	if cfg.RemoteAPI.TimeoutMS <= 0 {
		return fmt.Errorf("remote_api.timeout_ms must be positive")
	}
	if cfg.RemoteAPI.MaxRetries < 0 {
		return fmt.Errorf("remote_api.max_retries must not be negative")
	}
	if cfg.Support.PollIntervalSeconds <= 0 {
		return fmt.Errorf("support.poll_interval_seconds must be positive")
	}
	if cfg.Progress.Concurrency <= 0 {
		return fmt.Errorf("progress.concurrency must be positive")
	}
	if cfg.LoginRateLimit.RequestsPerWindow < 0 {
		return fmt.Errorf("login_rate_limit.requests_per_window must not be negative")
	}
	if cfg.LoginRateLimit.RequestsPerWindow > 0 && cfg.LoginRateLimit.WindowSeconds <= 0 {
		return fmt.Errorf("login_rate_limit.window_seconds must be positive")
	}
	if cfg.Redemption.MinimumPoints <= 0 || cfg.Redemption.PointValueCents <= 0 {
		return fmt.Errorf("redemption.minimum_points and redemption.point_value_cents must be positive")
	}
	return nil
}

func validateOrigin(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", name, raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid %s %q: scheme must be http or https", name, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid %s %q: missing host", name, raw)
	}
	return nil
}
