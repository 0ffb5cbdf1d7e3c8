// Package config loads the SuShef configuration: the shared bot settings plus
// the relay, session store and database sections.
package config

import (
	"fmt"
	"net/url"
	"strings"

	coreconfig "github.com/m3rciful/sushef/core/config"
	coredatabase "github.com/m3rciful/sushef/core/database"
	"github.com/m3rciful/sushef/internal/attachment"
)

// DefaultDashboardURL is the spreadsheet linked after a dashboard search.
const DefaultDashboardURL = "https://docs.google.com/spreadsheets/d/1Sj22AJnBWJUkGG7qrP5qsb9Pg99hxYAwzkmSd7nP_3E/edit?gid=197248813#gid=197248813"

// Session store backends.
const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// RelayConfig points at the backend workflow.
type RelayConfig struct {
	URL          string `yaml:"url" envconfig:"N8N_WEBHOOK_URL"`
	DashboardURL string `yaml:"dashboard_url" envconfig:"DASHBOARD_URL"`
	// MaxFileBytes caps a downloaded attachment; 0 -> 20 MiB.
	MaxFileBytes int64 `yaml:"max_file_bytes" envconfig:"MAX_FILE_BYTES"`
}

// SessionConfig selects where user modes live.
type SessionConfig struct {
	Backend  string `yaml:"backend" envconfig:"SESSION_BACKEND"`
	RedisURL string `yaml:"redis_url" envconfig:"REDIS_URL"`
}

// Config is the full application configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Relay    RelayConfig         `yaml:"relay"`
	Session  SessionConfig       `yaml:"session"`
	Database coredatabase.Config `yaml:"database"`
}

// Load reads path, overlays the environment and validates the result.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates the application sections and fills defaults.
func Normalize(cfg *Config) error {
	cfg.Relay.URL = strings.TrimSpace(cfg.Relay.URL)
	if cfg.Relay.URL == "" {
		return fmt.Errorf("relay.url is required")
	}
	if u, err := url.Parse(cfg.Relay.URL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("relay.url %q is not an absolute URL", cfg.Relay.URL)
	}
	if strings.TrimSpace(cfg.Relay.DashboardURL) == "" {
		cfg.Relay.DashboardURL = DefaultDashboardURL
	}
	switch {
	case cfg.Relay.MaxFileBytes < 0:
		return fmt.Errorf("relay.max_file_bytes must be >= 0")
	case cfg.Relay.MaxFileBytes == 0:
		cfg.Relay.MaxFileBytes = attachment.DefaultMaxBytes
	}

	backend := strings.ToLower(strings.TrimSpace(cfg.Session.Backend))
	if backend == "" {
		backend = BackendPostgres
	}
	switch backend {
	case BackendPostgres:
		if cfg.Database.Host == "" || cfg.Database.Name == "" {
			return fmt.Errorf("database.host and database.name are required for the postgres session backend")
		}
		if cfg.Database.Port == "" {
			cfg.Database.Port = "5432"
		}
	case BackendRedis:
		if strings.TrimSpace(cfg.Session.RedisURL) == "" {
			return fmt.Errorf("session.redis_url is required for the redis session backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("invalid session.backend %q; allowed: postgres, redis, memory", cfg.Session.Backend)
	}
	cfg.Session.Backend = backend
	return nil
}
