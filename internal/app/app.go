// Package app wires configuration, observability, services and the HTTP
// server into a runnable application.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"wdicli/internal/config"
	"wdicli/internal/detection"
	"wdicli/internal/dune"
	"wdicli/internal/infrastructure"
	"wdicli/internal/services"
	transporthttp "wdicli/internal/transport/http"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// App is the assembled application.
type App struct {
	cfg       *config.Config
	logger    *slog.Logger
	telemetry *infrastructure.OTelProviders
	store     *services.DatasetStore
	service   *services.AnalyticsService
	server    *http.Server
}

// New builds the application from configuration.
func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := infrastructure.InitializeLogger(cfg.Logging)

	telemetry, err := infrastructure.InitializeOTel(logger)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	store := services.NewDatasetStore(cfg.Limits.MaxDatasets)

	var duneClient services.DuneRunner
	if cfg.Dune.APIKey != "" {
		duneClient = dune.NewClient(dune.Config{
			APIKey:            cfg.Dune.APIKey,
			BaseURL:           cfg.Dune.BaseURL,
			PollInterval:      cfg.Dune.PollInterval,
			Timeout:           cfg.Dune.Timeout,
			RequestsPerMinute: cfg.Dune.RequestsPerMinute,
		}, logger)
	} else {
		logger.Info("dune integration disabled, no API key configured")
	}

	service := services.NewAnalyticsService(store, detection.DefaultRegistry(), duneClient, telemetry.Metrics, cfg.Limits, logger)

	router := transporthttp.NewRouter(transporthttp.RouterDeps{
		Config:    cfg,
		Service:   service,
		Store:     store,
		Telemetry: telemetry,
		Logger:    logger,
		Version:   Version,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &App{
		cfg:       cfg,
		logger:    logger,
		telemetry: telemetry,
		store:     store,
		service:   service,
		server:    server,
	}, nil
}

// Run starts the HTTP server and blocks until SIGINT/SIGTERM or a fatal
// server error, then shuts down gracefully.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server starting",
			slog.String("addr", a.server.Addr),
			slog.String("version", Version),
		)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	}

	return a.Shutdown()
}

// Shutdown drains in-flight requests and flushes telemetry.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := a.telemetry.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	a.logger.Info("shutdown complete", slog.String("grace", a.cfg.Server.ShutdownTimeout.String()))
	return nil
}
