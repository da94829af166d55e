package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config carries service settings loaded from TOML with environment overrides.
type Config struct {
	Server struct {
		Addr            string `toml:"addr" validate:"required"`
		ShutdownSeconds int    `toml:"shutdown_seconds" validate:"gte=1,lte=120"`
	} `toml:"server"`

	Auth struct {
		Secret         string `toml:"secret"`
		AccessTTL      int    `toml:"access_ttl_minutes" validate:"gte=1,lte=1440"`
		OverrideHeader string `toml:"override_header" validate:"required"`
	} `toml:"auth"`

	Database struct {
		DSN           string `toml:"dsn"`
		MigrationsDir string `toml:"migrations_dir"`
		SeedsDir      string `toml:"seeds_dir"`
	} `toml:"database"`

	RateLimit struct {
		PerSecond int `toml:"per_second" validate:"gte=1"`
		Burst     int `toml:"burst" validate:"gte=1"`
	} `toml:"rate_limit"`
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	var cfg Config
	cfg.Server.Addr = ":8080"
	cfg.Server.ShutdownSeconds = 10
	cfg.Auth.AccessTTL = 15
	cfg.Auth.OverrideHeader = "X-Active-Role"
	cfg.RateLimit.PerSecond = 50
	cfg.RateLimit.Burst = 100
	return &cfg
}

// Load reads the TOML file at path (optional), applies environment overrides
// and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	applyEnv(cfg)

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// AccessTTLDuration returns the credential lifetime.
func (c *Config) AccessTTLDuration() time.Duration {
	return time.Duration(c.Auth.AccessTTL) * time.Minute
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("SCOLARIS_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("SCOLARIS_AUTH_SECRET"); v != "" {
		cfg.Auth.Secret = v
	}
	if v := os.Getenv("SCOLARIS_PG_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("SCOLARIS_ACCESS_TTL_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Auth.AccessTTL = n
		}
	}
}
