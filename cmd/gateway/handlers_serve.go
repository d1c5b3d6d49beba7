package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/mcbe-gateway/agent-gateway/internal/config"
	"github.com/mcbe-gateway/agent-gateway/internal/observability"
	"github.com/mcbe-gateway/agent-gateway/internal/server"
)

// serveOptions carries serve's flag values through to runServe. --host,
// --port, and --log-level override their config-file counterparts only
// when set; --dev forces auth.dev_mode on regardless of the config file,
// distinct from --debug (which only raises the log level).
type serveOptions struct {
	configPath string
	debug      bool
	host       string
	port       int
	logLevel   string
	dev        bool
}

// runServe implements the serve command: load config, apply CLI flag
// overrides, build the server, run it until a shutdown signal arrives,
// then stop it within a bounded grace period.
func runServe(ctx context.Context, opts serveOptions) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if opts.host != "" {
		cfg.Server.Host = opts.host
	}
	if opts.port != 0 {
		cfg.Server.Port = opts.port
	}
	if opts.dev {
		cfg.Auth.DevMode = true
	}

	logLevel := cfg.Logging.Level
	if opts.debug {
		logLevel = "debug"
	}
	if opts.logLevel != "" {
		logLevel = opts.logLevel
	}
	logger := observability.NewLogger(logLevel, cfg.Logging.Format)
	logger.Info("starting gateway", "version", version, "commit", commit, "config", opts.configPath)

	srv, err := server.New(server.Config{Config: cfg, Logger: logger, ConfigPath: opts.configPath})
	if err != nil {
		return fmt.Errorf("failed to build gateway: %w", err)
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Start performs one-shot setup (lock acquisition, worker pool, HTTP
	// listener) and returns once serving is underway; the listener and
	// workers keep running in their own goroutines after it returns.
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("failed to start gateway: %w", err)
	}
	logger.Info("gateway started", "addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port))

	<-ctx.Done()
	logger.Info("shutdown signal received, stopping gateway")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	logger.Info("gateway stopped gracefully")
	return nil
}
