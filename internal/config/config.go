// Package config loads process configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/Shivanand-hulikatti/event-engagement-ledger/internal/database"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
)

// Config is the full runtime configuration of the server.
type Config struct {
	Port string `env:"PORT" envDefault:"8080"`

	StoreBackend string        `env:"STORE_BACKEND" envDefault:"memory"`
	StoreTimeout time.Duration `env:"STORE_TIMEOUT" envDefault:"5s"`
	MaxRetries   int           `env:"LEDGER_MAX_RETRIES" envDefault:"3"`
	// StreakTimezone names the IANA zone that defines calendar days.
	StreakTimezone string        `env:"STREAK_TIMEZONE" envDefault:"UTC"`
	NotifyTimeout  time.Duration `env:"NOTIFY_TIMEOUT" envDefault:"5s"`

	DB database.Config `envPrefix:"DB_"`

	MongoURI      string `env:"MONGO_URI" envDefault:"mongodb://127.0.0.1:27017"`
	MongoDatabase string `env:"MONGO_DATABASE" envDefault:"engagement"`

	// OTelEndpoint enables trace export when set.
	OTelEndpoint    string `env:"OTEL_ENDPOINT"`
	OTelServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"event-engagement-ledger"`
}

// ParseEnv loads configuration from environment variables into target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses and validates the server configuration.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c Config) Validate() error {
	switch c.StoreBackend {
	case BackendMemory, BackendPostgres, BackendMongo:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if c.StoreTimeout <= 0 {
		return fmt.Errorf("STORE_TIMEOUT must be positive, got %s", c.StoreTimeout)
	}
	if c.MaxRetries <= 0 {
		return fmt.Errorf("LEDGER_MAX_RETRIES must be positive, got %d", c.MaxRetries)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves StreakTimezone.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.StreakTimezone)
	if err != nil {
		return nil, fmt.Errorf("STREAK_TIMEZONE: %w", err)
	}
	return loc, nil
}
