package bot

import (
	"errors"
	"fmt"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/projectbot/core/config"
	coredatabase "github.com/m3rciful/projectbot/core/database"
)

// Session storage drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// APIConfig points at the marketplace REST API.
type APIConfig struct {
	BaseURL string        `yaml:"base_url" envconfig:"API_BASE_URL"`
	Token   string        `yaml:"token" envconfig:"API_TOKEN"`
	Timeout time.Duration `yaml:"timeout" envconfig:"API_TIMEOUT"`
}

// RedisConfig is used by the redis session driver.
type RedisConfig struct {
	Addr     string `yaml:"addr" envconfig:"REDIS_ADDR"`
	Password string `yaml:"password" envconfig:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" envconfig:"REDIS_DB"`
	Prefix   string `yaml:"prefix" envconfig:"REDIS_PREFIX"`
}

// SessionConfig selects where conversations are kept and for how long.
type SessionConfig struct {
	Driver string        `yaml:"driver" envconfig:"SESSION_DRIVER"`
	TTL    time.Duration `yaml:"ttl" envconfig:"SESSION_TTL"`
	// JanitorInterval is how often expired rows are purged; 0 picks a default.
	JanitorInterval time.Duration `yaml:"janitor_interval"`
	Redis           RedisConfig   `yaml:"redis"`
}

// OpsConfig configures the metrics and health listener. Empty disables it.
type OpsConfig struct {
	Listen string `yaml:"listen" envconfig:"OPS_LISTEN"`
}

// WizardConfig tunes the project conversation.
type WizardConfig struct {
	Timezone          string `yaml:"timezone" envconfig:"WIZARD_TIMEZONE"`
	RequirePhone      bool   `yaml:"require_phone" envconfig:"WIZARD_REQUIRE_PHONE"`
	MaxUploadBytes    int64  `yaml:"max_upload_bytes" envconfig:"WIZARD_MAX_UPLOAD_BYTES"`
	UploadConcurrency int    `yaml:"upload_concurrency"`

	location *time.Location
}

// Location is the resolved Timezone.
func (w WizardConfig) Location() *time.Location {
	if w.location == nil {
		return time.UTC
	}
	return w.location
}

// Config is the full bot configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	API      APIConfig           `yaml:"api"`
	Session  SessionConfig       `yaml:"session"`
	Database coredatabase.Config `yaml:"database"`
	Ops      OpsConfig           `yaml:"ops"`
	Wizard   WizardConfig        `yaml:"wizard"`
}

// CoreConfig exposes the shared transport settings.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// NeedsDatabase reports whether sessions live in Postgres.
func (c *Config) NeedsDatabase() bool {
	return c.Session.Driver == DriverPostgres
}

// LoadConfig reads path, overlays the environment and validates the result.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg, false); err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates the configuration and fills defaults.
func (c *Config) Normalize() error {
	if err := coreconfig.Normalize(&c.Config); err != nil {
		return err
	}

	c.API.BaseURL = strings.TrimSpace(c.API.BaseURL)
	if c.API.BaseURL == "" {
		return errors.New("config: api.base_url is required")
	}
	if c.API.Timeout <= 0 {
		c.API.Timeout = 10 * time.Second
	}

	c.Session.Driver = strings.ToLower(strings.TrimSpace(c.Session.Driver))
	switch c.Session.Driver {
	case "":
		c.Session.Driver = DriverMemory
	case DriverMemory, DriverPostgres:
	case DriverRedis:
		if strings.TrimSpace(c.Session.Redis.Addr) == "" {
			return errors.New("config: session.redis.addr is required for the redis driver")
		}
	default:
		return fmt.Errorf("config: invalid session.driver %q; allowed: memory, postgres, redis", c.Session.Driver)
	}
	if c.Session.TTL < 0 {
		return errors.New("config: session.ttl must be >= 0")
	}
	if c.Session.TTL == 0 {
		c.Session.TTL = 24 * time.Hour
	}
	if c.Session.JanitorInterval <= 0 {
		c.Session.JanitorInterval = 10 * time.Minute
	}
	if c.NeedsDatabase() && strings.TrimSpace(c.Database.Host) == "" {
		return errors.New("config: database.host is required for the postgres driver")
	}
	if c.Database.Port == "" {
		c.Database.Port = "5432"
	}

	tz := strings.TrimSpace(c.Wizard.Timezone)
	if tz == "" {
		tz = "Asia/Tehran"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return fmt.Errorf("config: wizard.timezone: %w", err)
	}
	c.Wizard.Timezone = tz
	c.Wizard.location = loc
	if c.Wizard.MaxUploadBytes < 0 {
		return errors.New("config: wizard.max_upload_bytes must be >= 0")
	}
	if c.Wizard.MaxUploadBytes == 0 {
		c.Wizard.MaxUploadBytes = 10 << 20
	}
	return nil
}
