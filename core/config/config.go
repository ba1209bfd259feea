// Package config loads the transport-level settings every bot shares.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds bot credentials and update delivery settings.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	AdminID int64  `yaml:"admin_id" envconfig:"TELEGRAM_ADMIN_ID"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
	// SecretToken is echoed by Telegram in X-Telegram-Bot-Api-Secret-Token.
	SecretToken string `yaml:"secret_token" envconfig:"WEBHOOK_SECRET_TOKEN"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format      string `yaml:"format" envconfig:"LOG_FORMAT"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir" envconfig:"LOG_DIR"`
	BotFile     string `yaml:"bot_file"`
	ErrorsFile  string `yaml:"errors_file"`
	// Profile is "debug" or "prod"; it picks level and format defaults.
	Profile string `yaml:"profile" envconfig:"LOG_PROFILE"`
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

// Update kinds accepted by rate_limit.exclude_updates.
const (
	UpdateCallback    = "callback"
	UpdateMessage     = "message"
	UpdateInlineQuery = "inline_query"
)

// RateLimitConfig throttles updates per sender. IntervalMS 0 disables it.
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// Config aggregates the configuration that belongs to the reusable core.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// Decode reads the YAML file at path into dst and then overlays environment
// variables. A missing file is not an error when allowMissing is set.
func Decode(path string, dst any, allowMissing bool) error {
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, dst); err != nil {
			return fmt.Errorf("config: parse %s: %w", path, err)
		}
	case allowMissing && errors.Is(err, os.ErrNotExist):
	default:
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := envconfig.Process("", dst); err != nil {
		return fmt.Errorf("config: env: %w", err)
	}
	return nil
}

// Load reads the core configuration from a YAML file and the environment.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := Decode(path, &cfg, false); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates required fields and fills defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return errors.New("config: nil config")
	}
	if err := cfg.Telegram.normalize(cfg.Webhook); err != nil {
		return err
	}
	return cfg.RateLimit.normalize()
}

// normalize settles the run mode; "polling" and "" mean long polling.
func (t *TelegramConfig) normalize(wh WebhookConfig) error {
	if strings.TrimSpace(t.Token) == "" {
		return errors.New("config: telegram.token is required")
	}
	mode := strings.ToLower(strings.TrimSpace(t.RunMode))
	if mode == "" || mode == "polling" {
		mode = RunModeLongpoll
	}
	switch mode {
	case RunModeLongpoll:
		if t.LongPollTimeoutSeconds < 0 {
			return errors.New("config: telegram.longpoll_timeout_seconds must be >= 0")
		}
	case RunModeWebhook:
		if err := wh.validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("config: invalid telegram.run_mode %q; allowed: webhook, longpoll", t.RunMode)
	}
	t.RunMode = mode
	return nil
}

func (w WebhookConfig) validate() error {
	var missing []string
	if strings.TrimSpace(w.URL) == "" {
		missing = append(missing, "webhook.url")
	}
	if strings.TrimSpace(w.Listen) == "" {
		missing = append(missing, "webhook.listen")
	}
	if w.Port <= 0 {
		missing = append(missing, "webhook.port")
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: webhook mode requires %s", strings.Join(missing, ", "))
	}
	return nil
}

var excludable = map[string]bool{
	"":                true,
	UpdateCallback:    true,
	UpdateMessage:     true,
	UpdateInlineQuery: true,
}

func (r *RateLimitConfig) normalize() error {
	if r.IntervalMS < 0 {
		return errors.New("config: rate_limit.interval_ms must be >= 0")
	}
	for i, v := range r.ExcludeUpdates {
		kind := strings.ToLower(strings.TrimSpace(v))
		if !excludable[kind] {
			return fmt.Errorf("config: invalid rate_limit.exclude_updates value %q; allowed: callback, message, inline_query", v)
		}
		r.ExcludeUpdates[i] = kind
	}
	return nil
}
