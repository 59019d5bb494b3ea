// Package main is the entrypoint for the portal server.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gloriousnetworker/dcarbon-portal/internal/components/api"
	"github.com/gloriousnetworker/dcarbon-portal/internal/components/documents"
	"github.com/gloriousnetworker/dcarbon-portal/internal/components/invitations"
	"github.com/gloriousnetworker/dcarbon-portal/internal/components/portalapi"
	"github.com/gloriousnetworker/dcarbon-portal/internal/components/progress"
	"github.com/gloriousnetworker/dcarbon-portal/internal/components/redemption"
	"github.com/gloriousnetworker/dcarbon-portal/internal/components/reports"
	"github.com/gloriousnetworker/dcarbon-portal/internal/components/session"
	"github.com/gloriousnetworker/dcarbon-portal/internal/components/support"
	"github.com/gloriousnetworker/dcarbon-portal/internal/components/wizard"
	"github.com/gloriousnetworker/dcarbon-portal/internal/platform/cache"
	"github.com/gloriousnetworker/dcarbon-portal/internal/platform/config"
	"github.com/gloriousnetworker/dcarbon-portal/internal/platform/http/client"
	"github.com/gloriousnetworker/dcarbon-portal/internal/platform/http/ratelimit"
	"github.com/gloriousnetworker/dcarbon-portal/internal/platform/http/server"
	"github.com/gloriousnetworker/dcarbon-portal/internal/platform/logutil"
	"github.com/gloriousnetworker/dcarbon-portal/internal/platform/store"
	"github.com/gloriousnetworker/dcarbon-portal/internal/services/portal"

	// Register cache and store drivers
	_ "github.com/gloriousnetworker/dcarbon-portal/internal/platform/cache/loader"
	_ "github.com/gloriousnetworker/dcarbon-portal/internal/platform/store/loader"
)

const (
	sweepInterval   = 5 * time.Minute
	shutdownTimeout = 30 * time.Second
)

func main() {
	configPath := flag.String("config", "", "Path to TOML config file (optional)")
	modeFlag := flag.String("mode", "", "Operating mode: strict or dev (overrides config)")
	envFile := flag.String("env-file", ".env", "Dotenv file loaded when present")
	listenAddr := flag.String("listen", "", "Listen address (overrides config)")
	apiBaseURL := flag.String("api-base-url", "", "Remote API base URL (overrides config)")
	storeDriver := flag.String("store-driver", "", "Store driver: memory, sqlite or postgres (overrides config)")
	storeDataDir := flag.String("store-data-dir", "", "Directory for the sqlite database (overrides config)")
	cacheDriver := flag.String("cache-driver", "", "Cache driver: memory or valkey (overrides config)")
	loggingLevel := flag.String("logging-level", "", "Log level: trace, debug, info, warn, error (overrides config)")
	flag.Parse()

	// Bootstrap logger for config loading errors
	bootstrapLogger := logutil.NewJSON(os.Stdout, "info")

	// Precedence: mode preset -> TOML file -> environment -> CLI flags
	cfg, err := config.Load(config.LoaderOptions{
		ConfigPath: *configPath,
		EnvFile:    *envFile,
		ModeFlag:   *modeFlag,
		FlagOverrides: config.FlagOverrides{
			ListenAddr:   listenAddr,
			APIBaseURL:   apiBaseURL,
			StoreDriver:  storeDriver,
			StoreDataDir: storeDataDir,
			CacheDriver:  cacheDriver,
			LoggingLevel: loggingLevel,
		},
		Logger: bootstrapLogger,
	})
	if err != nil {
		bootstrapLogger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logutil.NewJSON(os.Stdout, cfg.Logging.Level)
	slog.SetDefault(logger)
	logger.Info("effective configuration", "config", cfg.Redacted())

	if err := run(cfg, logger); err != nil {
		logger.Error("portal stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.server.Start()
	}()
	logger.Info("server started", "listen_addr", cfg.ListenAddr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return a.server.Shutdown(shutdownCtx)
}

// app is the wired portal. close releases the store and cache once the
// server has shut down.
type app struct {
	server  *server.Server
	closers []func() error
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// newApp builds every component from cfg. Background work (session sweeping,
// reply polling) stops when ctx is done or the server shuts down.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	st, err := store.New(&store.DriverConfig{
		Driver:  cfg.Store.Driver,
		DataDir: cfg.Store.DataDir,
		DSN:     cfg.Store.DSN,
	})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, st.Close)
	if err := st.Init(ctx); err != nil {
		return nil, err
	}
	logger.Info("store ready", "driver", st.Name())

	cacheDriver := cfg.Cache.Driver
	if cacheDriver == "" {
		cacheDriver = "memory"
	}
	c, err := cache.NewFromConfig(cacheDriver, cfg.Cache.Drivers, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, c.Close)

	remote := portalapi.New(client.New(cfg.RemoteAPI, logger), cfg.RemoteAPI.BaseURL, cfg.RemoteAPI.LegacyBaseURL, logger)

	sessions := session.NewManager(remote, st, time.Duration(cfg.Session.TTLSeconds)*time.Second, logger)
	tracker := progress.NewTracker(c, time.Duration(cfg.Progress.CacheTTLSeconds)*time.Second, cfg.Progress.Concurrency, logger)

	engine, err := wizard.NewEngine(remote, st, wizard.Options{
		Sessions: sessions,
		Progress: tracker,
		UtilityAuth: wizard.UtilityAuth{
			PortalURL: cfg.UtilityAuth.PortalURL,
			NewTabURL: cfg.UtilityAuth.NewTabURL,
		},
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}

	poller := support.NewPoller(remote, c, time.Duration(cfg.Support.PollIntervalSeconds)*time.Second, logger)

	// Ending a session stops its reply polling and drops its wizards.
	sessions.OnInvalidate(poller.StopSession)
	sessions.OnInvalidate(func(ctx context.Context, sessionID string) {
		if err := engine.Forget(ctx, sessionID); err != nil {
			logger.Warn("failed to drop wizards of ended session", "session_id", sessionID, "error", err)
		}
	})
	go sessions.RunSweeper(ctx, sweepInterval)

	login := ratelimit.New(c, "login", cfg.LoginRateLimit, logger)

	portalSvc := portal.New(portal.Deps{
		Sessions:     sessions,
		Progress:     tracker,
		Workflows:    progress.NewCatalog(remote),
		Wizards:      engine,
		Facilities:   remote,
		Documents:    documents.NewUploader(remote, tracker, cfg.RemoteAPI.MaxUploadBytes, logger),
		Reports:      reports.NewService(remote, c, logger),
		Points:       redemption.NewService(remote, cfg.Redemption.MinimumPoints, cfg.Redemption.PointValueCents, logger),
		Invitations:  invitations.NewService(remote, tracker, logger),
		Support:      poller,
		LoginLimiter: login.Wrap,
	}, portal.Config{
		CookieName:     cfg.Session.CookieName,
		CookieSecure:   cfg.Session.CookieSecure,
		MaxUploadBytes: cfg.RemoteAPI.MaxUploadBytes,
	}, logger)

	srv, err := server.New(cfg, logger, server.Options{
		Sessions: sessions,
		Health:   api.HealthHandler(c),
		Services: []server.Service{portalSvc},
	})
	if err != nil {
		portalSvc.Close()
		return nil, err
	}
	a.server = srv
	return a, nil
}
