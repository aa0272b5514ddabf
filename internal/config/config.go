package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"

	"stakeduel-backend/internal/models"
)

// Config holds runtime configuration sourced from env vars.
type Config struct {
	Port string `env:"PORT" envDefault:"8080"`
	Env  string `env:"APP_ENV" envDefault:"development"`

	StoreDriver string `env:"STORE_DRIVER" envDefault:"sqlite"`
	RedisURL    string `env:"REDIS_URL" envDefault:"localhost:6379"`
	RedisPass   string `env:"REDIS_PASSWORD"`
	RedisDB     int    `env:"REDIS_DB" envDefault:"0"`
	DatabaseURL string `env:"DATABASE_URL"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"data/stakeduel.db"`
	S3Bucket    string `env:"S3_BUCKET"`
	S3Prefix    string `env:"S3_PREFIX" envDefault:"stakeduel/"`
	S3Region    string `env:"S3_REGION"`
	S3Endpoint  string `env:"S3_ENDPOINT"`

	JWTSecret string `env:"JWT_SECRET"`
	JWTIssuer string `env:"JWT_ISSUER" envDefault:"stakeduel-auth"`

	EntryFee       decimal.Decimal `env:"ENTRY_FEE" envDefault:"10"`
	WinnerPayout   decimal.Decimal `env:"WINNER_PAYOUT" envDefault:"16"`
	PlatformFee    decimal.Decimal `env:"PLATFORM_FEE" envDefault:"4"`
	InitialBalance decimal.Decimal `env:"INITIAL_BALANCE" envDefault:"0"`

	MatchDuration     time.Duration `env:"MATCH_DURATION" envDefault:"3m"`
	WaitingTimeout    time.Duration `env:"WAITING_TIMEOUT" envDefault:"10m"`
	SaveInterval      time.Duration `env:"SAVE_INTERVAL" envDefault:"30s"`
	ReconcileInterval time.Duration `env:"RECONCILE_INTERVAL" envDefault:"1m"`
	SnapshotHistory   int           `env:"SNAPSHOT_HISTORY" envDefault:"5"`

	// NoWinnerPolicy is "refund" or "fee_only".
	NoWinnerPolicy string `env:"NO_WINNER_POLICY" envDefault:"refund"`

	DeveloperContacts  []string `env:"DEVELOPER_CONTACTS" envSeparator:","`
	CORSOrigins        []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	RateLimitPerMinute int      `env:"RATE_LIMIT_PER_MINUTE" envDefault:"60"`
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	cfg.DeveloperContacts = trimAll(cfg.DeveloperContacts)
	cfg.CORSOrigins = trimAll(cfg.CORSOrigins)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return errors.New("JWT_SECRET is required")
	}
	if _, err := c.FeeSchedule(); err != nil {
		return err
	}
	if c.InitialBalance.IsNegative() {
		return errors.New("INITIAL_BALANCE must not be negative")
	}
	if c.MatchDuration <= 0 || c.WaitingTimeout <= 0 {
		return errors.New("MATCH_DURATION and WAITING_TIMEOUT must be positive")
	}
	if c.MatchDuration%time.Second != 0 {
		return errors.New("MATCH_DURATION must be a whole number of seconds")
	}
	if c.SaveInterval <= 0 || c.ReconcileInterval <= 0 {
		return errors.New("SAVE_INTERVAL and RECONCILE_INTERVAL must be positive")
	}
	switch c.NoWinnerPolicy {
	case "refund", "fee_only":
	default:
		return fmt.Errorf("unknown NO_WINNER_POLICY %q", c.NoWinnerPolicy)
	}
	if c.SnapshotHistory < 0 {
		return errors.New("SNAPSHOT_HISTORY must not be negative")
	}

	switch c.StoreDriver {
	case "memory", "sqlite", "redis":
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres store")
		}
	case "s3":
		if c.S3Bucket == "" {
			return errors.New("S3_BUCKET is required for the s3 store")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	return nil
}

func (c *Config) FeeSchedule() (models.FeeSchedule, error) {
	fees, err := models.NewFeeSchedule(c.EntryFee, c.WinnerPayout, c.PlatformFee)
	if err != nil {
		return models.FeeSchedule{}, fmt.Errorf("invalid fee schedule: %w", err)
	}
	return fees, nil
}

// HTTPAddress returns the host:port pair for the HTTP server to bind to.
func (c *Config) HTTPAddress() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func trimAll(in []string) []string {
	var out []string
	for _, s := range in {
		if trimmed := strings.TrimSpace(s); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
