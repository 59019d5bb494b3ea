// Package tls builds the inbound listener's TLS configuration.
package tls

import (
	cryptotls "crypto/tls"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gloriousnetworker/dcarbon-portal/internal/platform/config"
	"github.com/gloriousnetworker/dcarbon-portal/internal/platform/logutil"
)

var (
	ErrInvalidTLSMode = errors.New("invalid TLS mode")
	ErrMissingCert    = errors.New("missing certificate or key file")
)

// ServerConfig returns the listener TLS config for the configured mode.
// Mode "off" returns nil.
func ServerConfig(cfg config.TLSConfig, logger *slog.Logger) (*cryptotls.Config, error) {
	switch cfg.Mode {
	case "", "off":
		return nil, nil
	case "static":
		return loadStatic(cfg, logutil.NoopIfNil(logger))
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidTLSMode, cfg.Mode)
	}
}

func loadStatic(cfg config.TLSConfig, logger *slog.Logger) (*cryptotls.Config, error) {
	if cfg.CertFile == "" || cfg.KeyFile == "" {
		return nil, ErrMissingCert
	}

	cert, err := cryptotls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load certificate: %w", err)
	}

	logger.Info("loaded static TLS certificate", "cert_file", cfg.CertFile)

	return &cryptotls.Config{
		Certificates: []cryptotls.Certificate{cert},
		MinVersion:   cryptotls.VersionTLS12,
	}, nil
}
