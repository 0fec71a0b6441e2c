package app

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/justgovernance/govstore/internal/backend/notify"
)

type Config struct {
	Env       string `env:"ENV"        envDefault:"dev"`  // dev, staging, prod
	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"` // debug, info, warn, error
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"` // json, text

	Store        StoreConfig        `envPrefix:"GOVSTORE_"`
	Tokens       TokenConfig        `envPrefix:"GOVSTORE_"`
	LoginRate    LoginRateConfig    `envPrefix:"GOVSTORE_LOGIN_RATE_"`
	Housekeeping HousekeepingConfig `envPrefix:"GOVSTORE_"`

	SeedDemoAccounts    bool          `env:"GOVSTORE_SEED_DEMO_ACCOUNTS"    envDefault:"false"`
	ShutdownGracePeriod time.Duration `env:"GOVSTORE_SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`

	SMTP notify.SMTPConfig
}

type StoreConfig struct {
	DatabaseFile string `env:"DATABASE_FILE" envDefault:"govstore.db"`
	PepperFile   string `env:"PEPPER_FILE"   envDefault:"pepper"`
	SnapshotName string `env:"SNAPSHOT_NAME" envDefault:"default"`
}

type TokenConfig struct {
	ResetTTL time.Duration `env:"RESET_TOKEN_TTL" envDefault:"1h"`
}

// LoginRateConfig throttles login attempts per email. Requests=0 disables it.
type LoginRateConfig struct {
	Requests int           `env:"REQUESTS" envDefault:"10"`
	Window   time.Duration `env:"WINDOW"   envDefault:"1m"`
	Burst    int           `env:"BURST"    envDefault:"10"`
}

type HousekeepingConfig struct {
	Interval         time.Duration `env:"HOUSEKEEPING_INTERVAL" envDefault:"1h"`
	TokenRetention   time.Duration `env:"TOKEN_RETENTION"       envDefault:"24h"`
	SessionRetention time.Duration `env:"SESSION_RETENTION"     envDefault:"720h"`
}

// LoadConfig reads the configuration from environment variables.
func LoadConfig() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}
