// Package cmd runs a bot process: config, bootstrap, signal-aware run loop.
package cmd

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	coreconfig "github.com/m3rciful/projectbot/core/config"
	"github.com/m3rciful/projectbot/core/logger"
	coretelegram "github.com/m3rciful/projectbot/core/telegram"
)

// DefaultConfigEnv names the variable that overrides the config path.
const DefaultConfigEnv = "CONFIG_PATH"

// ConfigCarrier exposes access to the embedded core configuration.
type ConfigCarrier interface {
	CoreConfig() *coreconfig.Config
}

// TelegramApp is the minimal interface required to run a Telegram bot.
// Apps that also implement io.Closer are closed after the bot stops.
type TelegramApp interface {
	TelegramRunOptions() (coretelegram.RunOptions, error)
}

// Options describe how to load configuration, bootstrap the app, and run the bot.
type Options struct {
	// ConfigPath wins over the environment and DefaultConfigPath.
	ConfigPath        string
	ConfigEnvVar      string
	DefaultConfigPath string

	LoadConfig func(path string) (ConfigCarrier, error)
	Bootstrap  func(ctx context.Context, cfg ConfigCarrier) (TelegramApp, error)

	ShutdownLogger func() error
	RunTelegram    func(ctx context.Context, opts coretelegram.RunOptions) error
	// Signals defaults to SIGINT and SIGTERM.
	Signals []os.Signal
}

// ResolveConfigPath picks the explicit path, then the env var, then the default.
func (o Options) ResolveConfigPath() (string, error) {
	env := cmp.Or(o.ConfigEnvVar, DefaultConfigEnv)
	if p := cmp.Or(o.ConfigPath, os.Getenv(env), o.DefaultConfigPath); p != "" {
		return p, nil
	}
	return "", fmt.Errorf("cmd: config path not provided via flag, %s or default", env)
}

// Run loads configuration, bootstraps the Telegram app, and blocks until the
// bot stops or a signal arrives. The logger is shut down on every path once
// the config has loaded.
func Run(ctx context.Context, opts Options) (err error) {
	if opts.LoadConfig == nil || opts.Bootstrap == nil {
		return errors.New("cmd: LoadConfig and Bootstrap are required")
	}
	startedAt := time.Now()

	path, err := opts.ResolveConfigPath()
	if err != nil {
		return err
	}
	cfg, err := opts.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("cmd: failed to load config: %w", err)
	}
	shutdownLogger := opts.ShutdownLogger
	if shutdownLogger == nil {
		shutdownLogger = logger.Shutdown
	}
	defer func() {
		if serr := shutdownLogger(); serr != nil {
			err = errors.Join(err, fmt.Errorf("cmd: logger shutdown: %w", serr))
		}
	}()
	if cfg.CoreConfig() == nil {
		return errors.New("cmd: loaded config is missing core configuration")
	}

	if len(opts.Signals) == 0 {
		opts.Signals = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}
	ctx, stop := signal.NotifyContext(ctx, opts.Signals...)
	defer stop()

	app, err := opts.Bootstrap(ctx, cfg)
	if err != nil {
		return fmt.Errorf("cmd: bootstrap failed: %w", err)
	}
	if c, ok := app.(io.Closer); ok {
		defer closeApp(c)
	}

	runOpts, err := app.TelegramRunOptions()
	if err != nil {
		return fmt.Errorf("cmd: telegram options build failed: %w", err)
	}
	withLifecycleLogs(&runOpts, startedAt)

	run := opts.RunTelegram
	if run == nil {
		run = coretelegram.RunTelegram
	}
	return run(ctx, runOpts)
}

func closeApp(c io.Closer) {
	if err := c.Close(); err != nil {
		logger.Warn(context.Background(), "app", "close",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
	}
}

// withLifecycleLogs logs "ready" after the app's OnStart succeeds and
// "shutdown" before its OnStop runs.
func withLifecycleLogs(o *coretelegram.RunOptions, startedAt time.Time) {
	onStart, onStop := o.OnStart, o.OnStop
	o.OnStart = func(ctx context.Context, rt coretelegram.Runtime) error {
		if onStart != nil {
			if err := onStart(ctx, rt); err != nil {
				return err
			}
		}
		logger.Info(ctx, "app", "ready",
			slog.String("status", "ok"),
			slog.Duration("startup", time.Since(startedAt)),
		)
		return nil
	}
	o.OnStop = func(ctx context.Context, rt coretelegram.Runtime) error {
		logger.Info(ctx, "app", "shutdown", slog.String("status", "ok"))
		if onStop == nil {
			return nil
		}
		return onStop(ctx, rt)
	}
}
