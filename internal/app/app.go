// Package app provides the top-level application lifecycle for polytrade.
// It wires the signing core, the exchange client, optional persistence and
// caches, and runs the configured mode.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/LTOFFICIALUK/PolyTrade-sub000/internal/config"
)

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	out     io.Writer
	approve ApproveOptions
	closers []func()
}

// ApproveOptions narrows the approve mode.
type ApproveOptions struct {
	TokenID   string
	CheckOnly bool
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
		out:    os.Stdout,
	}
}

// WithApproveOptions sets the token and check-only flag for approve mode.
func (a *App) WithApproveOptions(opts ApproveOptions) *App {
	a.approve = opts
	return a
}

// WithOutput redirects command output (derived keys, allowance reports).
func (a *App) WithOutput(w io.Writer) *App {
	a.out = w
	return a
}

// Run is the main entry point. It wires dependencies for the configured
// mode and blocks until the mode finishes or the context is cancelled. On
// return it runs all registered cleanup functions.
func (a *App) Run(ctx context.Context) error {
	mode := strings.ToLower(a.cfg.Mode)
	a.logger.InfoContext(ctx, "app: starting",
		slog.String("mode", mode),
		slog.String("log_level", a.cfg.LogLevel),
	)

	// encrypt-key touches nothing but the key file.
	if mode == "encrypt-key" {
		return a.EncryptKeyMode(ctx)
	}

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	switch mode {
	case "serve":
		return a.ServeMode(ctx, deps)
	case "approve":
		return a.ApproveMode(ctx, deps)
	case "derive-key":
		return a.DeriveKeyMode(ctx, deps)
	default:
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("app: shutting down")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
