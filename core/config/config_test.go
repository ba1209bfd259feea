package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesEnvOverYAML(t *testing.T) {
	path := writeYAML(t, `
telegram:
  token: from-yaml
  run_mode: Polling
rate_limit:
  interval_ms: 500
  exclude_updates: [" Callback "]
`)
	t.Setenv("BOT_TOKEN", "from-env")
	t.Setenv("TELEGRAM_ADMIN_ID", "42")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Telegram.Token)
	assert.Equal(t, int64(42), cfg.Telegram.AdminID)
	assert.Equal(t, RunModeLongpoll, cfg.Telegram.RunMode)
	assert.Equal(t, []string{UpdateCallback}, cfg.RateLimit.ExcludeUpdates)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)

	var cfg Config
	t.Setenv("BOT_TOKEN", "x")
	require.NoError(t, Decode(filepath.Join(t.TempDir(), "nope.yaml"), &cfg, true))
	assert.Equal(t, "x", cfg.Telegram.Token)
}

func TestNormalizeWebhook(t *testing.T) {
	cfg := &Config{
		Telegram: TelegramConfig{Token: "t", RunMode: "webhook"},
		Webhook:  WebhookConfig{URL: "https://bot.example.com/hook", Listen: "0.0.0.0", Port: 8443, SecretToken: "s3cret"},
	}
	require.NoError(t, Normalize(cfg))
	assert.Equal(t, RunModeWebhook, cfg.Telegram.RunMode)

	cfg.Webhook.Port = 0
	assert.ErrorContains(t, Normalize(cfg), "webhook.port")
}

func TestNormalizeRejects(t *testing.T) {
	cases := map[string]*Config{
		"nil":      nil,
		"token":    {},
		"run_mode": {Telegram: TelegramConfig{Token: "t", RunMode: "push"}},
		"timeout":  {Telegram: TelegramConfig{Token: "t", LongPollTimeoutSeconds: -1}},
		"exclude":  {Telegram: TelegramConfig{Token: "t"}, RateLimit: RateLimitConfig{ExcludeUpdates: []string{"poll"}}},
		"interval": {Telegram: TelegramConfig{Token: "t"}, RateLimit: RateLimitConfig{IntervalMS: -5}},
	}
	for name, cfg := range cases {
		assert.Error(t, Normalize(cfg), name)
	}
}
