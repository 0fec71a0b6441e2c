package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/justgovernance/govstore/internal/backend/store"
)

// HousekeepingConfig controls what the sweep removes and how often it runs.
type HousekeepingConfig struct {
	Interval         time.Duration // default 1h
	TokenRetention   time.Duration // keep used/expired tokens this long, default 24h
	SessionRetention time.Duration // keep logged out sessions this long, default 30 days
}

// HousekeepingService periodically removes used or expired tokens and
// abandoned sessions so the snapshot does not grow without bound. Live
// tokens and active sessions are never touched.
type HousekeepingService struct {
	Store  store.Store
	Logger *slog.Logger
	Config HousekeepingConfig
	Clock  Clock

	// Internal channels for lifecycle management
	stopCh chan struct{}
	doneCh chan struct{}
}

// CleanupResult counts what one sweep removed.
type CleanupResult struct {
	EmailTokens    int
	PasswordResets int
	Sessions       int
}

// NewHousekeepingService fills zero config values with defaults.
func NewHousekeepingService(store store.Store, logger *slog.Logger, cfg HousekeepingConfig) *HousekeepingService {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.TokenRetention <= 0 {
		cfg.TokenRetention = 24 * time.Hour
	}
	if cfg.SessionRetention <= 0 {
		cfg.SessionRetention = 30 * 24 * time.Hour
	}

	return &HousekeepingService{
		Store:  store,
		Logger: logger,
		Config: cfg,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins the background worker. Call Stop to shut it down.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", slog.Duration("interval", s.Config.Interval))
}

// Stop blocks until an in-progress sweep has finished.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Config.Interval)
	defer ticker.Stop()

	// Run cleanup immediately on startup
	s.Cleanup(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Cleanup(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Cleanup runs one sweep. Each purge is its own transaction, so a failure in
// one does not stop the others.
func (s *HousekeepingService) Cleanup(ctx context.Context) CleanupResult {
	now := s.Clock.now()
	tokenCutoff := now.Add(-s.Config.TokenRetention)
	sessionCutoff := now.Add(-s.Config.SessionRetention)

	var res CleanupResult
	purge := func(name string, fn func(tx store.Tx) (int, error)) int {
		var n int
		err := s.Store.WithTx(ctx, func(tx store.Tx) error {
			var err error
			n, err = fn(tx)
			return err
		})
		if err != nil {
			s.Logger.Error("housekeeping purge failed", slog.String("collection", name), slog.Any("error", err))
			return 0
		}
		return n
	}

	res.EmailTokens = purge("email_tokens", func(tx store.Tx) (int, error) {
		return tx.EmailTokens().DeleteUsedEmailTokens(ctx, tokenCutoff)
	})
	res.PasswordResets = purge("password_resets", func(tx store.Tx) (int, error) {
		return tx.PasswordResets().DeleteStalePasswordResets(ctx, tokenCutoff)
	})
	res.Sessions = purge("sessions", func(tx store.Tx) (int, error) {
		return tx.Sessions().DeleteInactiveSessions(ctx, sessionCutoff)
	})

	s.Logger.Info("housekeeping cleanup completed",
		"email_tokens", res.EmailTokens,
		"password_resets", res.PasswordResets,
		"sessions", res.Sessions,
	)
	return res
}
