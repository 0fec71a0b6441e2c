package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/justgovernance/govstore/internal/backend/api"
	"github.com/justgovernance/govstore/internal/backend/domain"
	"github.com/justgovernance/govstore/internal/backend/notify"
	"github.com/justgovernance/govstore/internal/backend/service"
	"github.com/justgovernance/govstore/internal/backend/store"
	"github.com/justgovernance/govstore/internal/backend/store/drivers/sqlite"
	"github.com/justgovernance/govstore/internal/backend/store/snapshot"
	"github.com/justgovernance/govstore/pkg/cryptox"
	"github.com/justgovernance/govstore/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application owns the store and the services built on it. UI code talks to
// it through clients returned by NewClient.
type Application struct {
	cfg    Config
	logger *slog.Logger

	store *snapshot.Store

	identityService     *service.IdentityService
	tokenService        *service.TokenService
	oauthService        *service.OAuthService
	resourceService     *service.ResourceService
	housekeepingService *service.HousekeepingService

	services *api.Services
	running  bool
}

// New opens the database, loads the snapshot and wires every service.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "govstore",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	pepper, err := cryptox.LoadOrCreatePepper(cfg.Store.PepperFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load pepper: %w", err)
	}

	hasher := cryptox.NewHasher(pepper)
	if err := app.initStore(hasher); err != nil {
		return nil, err
	}

	notifier, err := app.initNotifier()
	if err != nil {
		_ = app.store.Close()
		return nil, err
	}

	app.initServices(hasher, notifier)

	if cfg.SeedDemoAccounts {
		ctx := slogx.WithContext(context.Background(), app.logger)
		if _, err := app.identityService.SeedDemoAccounts(ctx); err != nil {
			_ = app.store.Close()
			return nil, fmt.Errorf("failed to seed demo accounts: %w", err)
		}
	}

	return app, nil
}

// initStore opens the sqlite persister, applies migrations and loads the
// snapshot into memory. Passwords met while importing a browser store
// snapshot are hashed with hasher.
func (app *Application) initStore(hasher *cryptox.Hasher) error {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)", app.cfg.Store.DatabaseFile)
	p, err := sqlite.NewPersister(dsn, app.cfg.Store.SnapshotName)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := p.ApplyMigrations(); err != nil {
		_ = p.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}
	app.logger.Info("database migrations applied successfully")

	ctx := context.Background()
	st, err := snapshot.Open(ctx, p,
		snapshot.WithLogger(app.logger),
		snapshot.WithPasswordHasher(hasher.Hash),
	)
	if err != nil {
		_ = p.Close()
		return fmt.Errorf("failed to load snapshot: %w", err)
	}
	app.store = st

	var users []domain.User
	if err := st.View(ctx, func(tx store.Tx) error {
		users, err = tx.Users().ListUsers(ctx)
		return err
	}); err != nil {
		_ = st.Close()
		return fmt.Errorf("failed to read snapshot: %w", err)
	}

	meta := st.Meta()
	app.logger.Info("snapshot loaded",
		slog.String("name", app.cfg.Store.SnapshotName),
		slog.String("etag", meta.ETag),
		slog.Time("updated_at", meta.UpdatedAt),
		slog.Int("users", len(users)),
	)
	return nil
}

// initNotifier uses SMTP when a host is configured and logs deliveries
// otherwise.
func (app *Application) initNotifier() (notify.Notifier, error) {
	if !app.cfg.SMTP.Enabled() {
		app.logger.Info("smtp not configured, deliveries are logged")
		return notify.Log{}, nil
	}
	smtp, err := notify.NewSMTP(app.cfg.SMTP)
	if err != nil {
		return nil, fmt.Errorf("invalid smtp config: %w", err)
	}
	app.logger.Info("smtp delivery enabled", slog.String("host", app.cfg.SMTP.Host))
	return smtp, nil
}

func (app *Application) initServices(hasher *cryptox.Hasher, notifier notify.Notifier) {
	app.identityService = &service.IdentityService{
		Store:  app.store,
		Hasher: hasher,
		Throttle: service.NewThrottle(service.ThrottleConfig{
			Requests: app.cfg.LoginRate.Requests,
			Window:   app.cfg.LoginRate.Window,
			Burst:    app.cfg.LoginRate.Burst,
		}, nil),
	}
	app.tokenService = &service.TokenService{
		Store:    app.store,
		Hasher:   hasher,
		Notifier: notifier,
		ResetTTL: app.cfg.Tokens.ResetTTL,
	}
	app.oauthService = &service.OAuthService{Store: app.store, Hasher: hasher}
	app.resourceService = &service.ResourceService{Store: app.store}

	app.housekeepingService = service.NewHousekeepingService(
		app.store,
		app.logger,
		service.HousekeepingConfig{
			Interval:         app.cfg.Housekeeping.Interval,
			TokenRetention:   app.cfg.Housekeeping.TokenRetention,
			SessionRetention: app.cfg.Housekeeping.SessionRetention,
		},
	)

	app.services = &api.Services{
		Identity:  app.identityService,
		Tokens:    app.tokenService,
		OAuth:     app.oauthService,
		Resources: app.resourceService,
	}
}

// NewClient returns a signed-out client, or one resuming sessionID when it
// is not empty.
func (app *Application) NewClient(sessionID string) *api.Client {
	if sessionID == "" {
		return api.NewClient(app.services, app.logger)
	}
	return api.Resume(app.services, app.logger, sessionID)
}

// Run starts housekeeping and blocks until ctx is cancelled or a shutdown
// signal arrives.
func (app *Application) Run(ctx context.Context) error {
	app.housekeepingService.Start()
	app.running = true
	app.logger.Info("govstore running", slog.String("version", BuildVersion))

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	select {
	case <-ctx.Done():
		app.logger.Info("context cancelled")
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", slog.String("signal", sig.String()))
	}

	if err := app.Shutdown(); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

// Shutdown stops housekeeping if Run started it and closes the database.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down govstore...")

	if app.running {
		app.housekeepingService.Stop()
		app.running = false
	}

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()
	if err := app.store.Ping(ctx); err != nil {
		app.logger.Warn("database unreachable before close", slog.Any("error", err))
	}

	if err := app.store.Close(); err != nil {
		app.logger.Error("error closing database", slog.Any("error", err))
		return err
	}

	app.logger.Info("govstore stopped")
	return nil
}
