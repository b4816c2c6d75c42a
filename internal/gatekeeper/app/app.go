// Package app assembles the gateway: configuration, storage, signing
// keys, services, and the HTTP server, plus its lifecycle.
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
	"time"

	httpapi "github.com/openagri/gatekeeper/internal/gatekeeper/http"
	"github.com/openagri/gatekeeper/internal/gatekeeper/service"
	"github.com/openagri/gatekeeper/internal/gatekeeper/store"
	"github.com/openagri/gatekeeper/internal/gatekeeper/store/drivers/sqlite"
	"github.com/openagri/gatekeeper/pkg/slogx"
)

// BuildVersion is set at build time via ldflags.
var BuildVersion = "dev"

// Application holds the wired gateway and its lifecycle.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db store.Store

	credentials  *service.CredentialService
	tokens       *service.TokenService
	fanout       *service.FanoutService
	registry     *service.RegistryService
	housekeeping *service.HousekeepingService

	server *http.Server
	router *httpapi.Router

	stopHousekeeping context.CancelFunc
	housekeepingDone chan struct{}
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "gatekeeper",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	codec, err := initCodec(cfg, app.logger)
	if err != nil {
		_ = app.db.Close()
		return nil, err
	}

	registry, err := initRegistry(cfg, app.logger)
	if err != nil {
		_ = app.db.Close()
		return nil, err
	}
	app.registry = registry

	app.credentials = &service.CredentialService{Store: app.db}
	app.tokens = service.NewTokenService(codec, app.db, cfg.Issuer, cfg.AccessTTL, cfg.RefreshTTL)
	app.fanout = &service.FanoutService{
		Registry:    app.registry,
		CallTimeout: cfg.FanoutTimeout,
		MaxRetries:  cfg.FanoutRetries,
		Concurrency: cfg.FanoutConcurrency,
	}
	app.housekeeping = &service.HousekeepingService{
		Store:    app.db,
		Interval: cfg.HousekeepingInterval,
	}

	app.router = httpapi.NewRouter(codec, BuildVersion, app.db, app.logger)
	app.router.Credentials = app.credentials
	app.router.Tokens = app.tokens
	app.router.Fanout = app.fanout
	app.router.Registry = app.registry
	app.router.ApplyRoutes()

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           app.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return app, nil
}

// Run starts the gateway and blocks until shutdown is requested.
func (app *Application) Run() error {
	hkCtx, cancel := context.WithCancel(context.Background())
	app.stopHousekeeping = cancel
	app.housekeepingDone = make(chan struct{})
	go func() {
		defer close(app.housekeepingDone)
		app.housekeeping.Run(slogx.WithContext(hkCtx, app.logger))
	}()

	app.logger.Info("gatekeeper starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"algorithm", app.cfg.Algorithm,
		"services", len(app.registry.List()),
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig.String())
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}
	return nil
}

// Shutdown drains in-flight requests, stops housekeeping, and closes
// the store.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down gatekeeper")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "err", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("closing server failed", "err", err)
		}
	}

	if app.stopHousekeeping != nil {
		app.stopHousekeeping()
		<-app.housekeepingDone
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("closing database failed", "err", err)
		return err
	}

	app.logger.Info("gatekeeper stopped")
	return nil
}

func (app *Application) initDatabase() error {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(dsn)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("apply migrations: %w", err)
	}

	app.logger.Info("database ready", "file", app.cfg.DatabaseFile)
	return nil
}

func initRegistry(cfg Config, logger *slog.Logger) (*service.RegistryService, error) {
	if cfg.ServicesFile == "" {
		logger.Warn("no services file configured; post-auth fanout disabled")
		return service.NewRegistry(), nil
	}

	registry, err := service.LoadRegistry(cfg.ServicesFile)
	if err != nil {
		return nil, fmt.Errorf("load service registry: %w", err)
	}
	return registry, nil
}
