// Package logger is a structured slog logger with a fixed field schema.
// Every line carries ts, level, component and event; update identifiers
// stored in the context are added automatically.
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/m3rciful/projectbot/core/buildinfo"
	coreconfig "github.com/m3rciful/projectbot/core/config"
)

var (
	initOnce sync.Once

	shutdownMu sync.Mutex
	shutDown   bool

	logWriter  *asyncWriter
	logClosers []io.Closer
	levelVar   slog.LevelVar

	debugSampler  = newRatioSampler(1, 50)
	traceOverride bool

	// base stays nil until InitLogger; the helpers below tolerate that.
	base *slog.Logger
)

// settings is the logging section resolved against its defaults.
type settings struct {
	level    slog.Level
	format   logFormat
	order    []string
	num, den int
	profile  string
}

func resolve(cfg *coreconfig.Config) settings {
	s := settings{
		level:   slog.LevelInfo,
		format:  formatJSON,
		order:   defaultKeyOrder,
		num:     1,
		den:     50,
		profile: "prod",
	}
	if cfg == nil {
		return s
	}
	lc := cfg.Logging

	if p := strings.ToLower(strings.TrimSpace(lc.Profile)); p != "" {
		s.profile = p
	}
	if s.profile == "debug" || s.profile == "dev" {
		s.format = formatKV
	}
	switch strings.ToLower(strings.TrimSpace(lc.Format)) {
	case "kv", "text", "pretty":
		s.format = formatKV
	case "json":
		s.format = formatJSON
	}

	switch strings.ToLower(strings.TrimSpace(lc.Level)) {
	case "debug":
		s.level = slog.LevelDebug
	case "warn", "warning":
		s.level = slog.LevelWarn
	case "error":
		s.level = slog.LevelError
	}

	if raw := strings.TrimSpace(lc.KeysOrder); raw != "" && raw != "default" {
		var order []string
		for _, k := range strings.Split(raw, ",") {
			if k = strings.TrimSpace(k); k != "" {
				order = append(order, k)
			}
		}
		if len(order) > 0 {
			s.order = order
		}
	}

	if num, den := parseRatioSpec(lc.DebugSample); num >= 0 {
		s.num, s.den = num, den
	}
	return s
}

// InitLogger installs the process logger. Only the first call has effect.
func InitLogger(cfg *coreconfig.Config) error {
	var initErr error
	initOnce.Do(func() {
		s := resolve(cfg)
		sinks, closers, err := openSinks(cfg)
		if err != nil {
			initErr = err
			return
		}
		levelVar.Set(s.level)
		debugSampler.Set(s.num, s.den)
		traceOverride = envFlag("TRACE") || envFlag("LOG_TRACE")

		logClosers = closers
		logWriter = newAsyncWriter(sinks, 64*1024)
		base = slog.New(newStructuredHandler(handlerConfig{
			level:    &levelVar,
			writer:   logWriter,
			format:   s.format,
			keyOrder: append([]string(nil), s.order...),
		}))
		slog.SetDefault(base)

		Info(context.Background(), "app", "startup",
			slog.String("status", "ok"),
			slog.String("version", buildinfo.Version),
			slog.String("go_version", runtime.Version()),
			slog.String("build_commit", buildinfo.Commit),
			slog.String("build_time", buildinfo.Date),
			slog.String("cfg_profile", s.profile),
		)
	})
	return initErr
}

// openSinks returns stdout plus the optional bot and errors files under
// logging.dir. The errors file only receives WARN and above.
func openSinks(cfg *coreconfig.Config) ([]sink, []io.Closer, error) {
	sinks := []sink{{w: os.Stdout, minLevel: levelAll}}
	if cfg == nil || strings.TrimSpace(cfg.Logging.Dir) == "" {
		return sinks, nil, nil
	}
	dir := strings.TrimSpace(cfg.Logging.Dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("logger: create log dir %s: %w", dir, err)
	}

	var closers []io.Closer
	files := []struct {
		name  string
		floor slog.Level
	}{
		{cfg.Logging.BotFile, levelAll},
		{cfg.Logging.ErrorsFile, slog.LevelWarn},
	}
	for _, f := range files {
		name := strings.TrimSpace(f.name)
		if name == "" {
			continue
		}
		path := filepath.Join(dir, name)
		fh, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, errors.Join(fmt.Errorf("logger: open %s: %w", path, err), closeAll(closers))
		}
		sinks = append(sinks, sink{w: fh, minLevel: f.floor})
		closers = append(closers, fh)
	}
	return sinks, closers, nil
}

func closeAll(closers []io.Closer) error {
	var errs []error
	for _, c := range closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// Shutdown flushes pending lines and closes the log files.
func Shutdown() error {
	shutdownMu.Lock()
	defer shutdownMu.Unlock()
	if shutDown {
		return nil
	}
	shutDown = true

	var errs []error
	if logWriter != nil {
		errs = append(errs, logWriter.Flush(), logWriter.Close())
	}
	errs = append(errs, closeAll(logClosers))
	return errors.Join(errs...)
}

// LogEvent writes one record with event as its first attribute. A nil logg
// falls back to the context logger and then to the process logger.
func LogEvent(ctx context.Context, logg *slog.Logger, level slog.Level, event string, attrs ...slog.Attr) {
	if logg == nil {
		logg = FromContext(ctx)
	}
	if logg == nil {
		return
	}
	if event != "" {
		attrs = append([]slog.Attr{slog.String("event", event)}, attrs...)
	}
	logg.LogAttrs(ctx, level, "", attrs...)
}

// Component returns the process logger scoped to name, or nil before InitLogger.
func Component(name string) *slog.Logger {
	if base == nil {
		return nil
	}
	if name = strings.TrimSpace(name); name == "" {
		return base
	}
	return base.With("component", name)
}

// Event logs under component at the given level.
func Event(ctx context.Context, component string, level slog.Level, event string, attrs ...slog.Attr) {
	logg := Component(component)
	if logg == nil {
		if logg = FromContext(ctx); logg != nil && strings.TrimSpace(component) != "" {
			logg = logg.With("component", strings.TrimSpace(component))
		}
	}
	LogEvent(ctx, logg, level, event, attrs...)
}

func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelDebug, event, attrs...)
}

func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelInfo, event, attrs...)
}

func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelWarn, event, attrs...)
}

func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelError, event, attrs...)
}

func envFlag(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// ShouldSampleDebug reports whether a high volume debug line should be
// written. TRACE=1 disables sampling.
func ShouldSampleDebug() bool {
	return traceOverride || debugSampler.Allow()
}
