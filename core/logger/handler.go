package logger

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

type logFormat string

const (
	formatJSON logFormat = "json"
	formatKV   logFormat = "kv"

	timeFormatMillis = "2006-01-02T15:04:05.000Z07:00"
)

var errNoWriter = errors.New("logger: writer not initialized")

type handlerConfig struct {
	level    slog.Leveler
	writer   *asyncWriter
	format   logFormat
	keyOrder []string
}

// structuredHandler renders one line per record in the configured format.
// Attributes bound through WithAttrs are normalized once, at bind time.
type structuredHandler struct {
	cfg    handlerConfig
	bound  fields
	prefix string
}

func newStructuredHandler(cfg handlerConfig) *structuredHandler {
	if cfg.level == nil {
		cfg.level = slog.LevelInfo
	}
	if cfg.keyOrder == nil {
		cfg.keyOrder = append([]string(nil), defaultKeyOrder...)
	}
	return &structuredHandler{cfg: cfg}
}

func (h *structuredHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.cfg.level.Level()
}

func (h *structuredHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.cfg.writer == nil {
		return errNoWriter
	}
	f := make(fields, len(h.bound)+r.NumAttrs()+8)
	for k, v := range h.bound {
		f[k] = v
	}
	r.Attrs(func(a slog.Attr) bool {
		f.add(h.prefix, a)
		return true
	})

	isJSON := h.cfg.format == formatJSON
	ts := r.Time.UTC()
	f["ts"] = ts.Truncate(time.Millisecond).Format(timeFormatMillis)
	f["level"] = levelName(r.Level)
	if isJSON {
		f["ts_unix_nano"] = ts.UnixNano()
	}
	f.merge(metaFrom(ctx))
	f.compactRID(isJSON)
	f.defaults(r.Message)
	f.normalizeEnums()
	f.prune()

	keys := f.keys(h.cfg.keyOrder)
	var line []byte
	if isJSON {
		var err error
		if line, err = encodeJSON(f, keys); err != nil {
			return err
		}
	} else {
		line = encodeKV(f, keys)
	}
	return h.cfg.writer.Write(r.Level, append(line, '\n'))
}

func (h *structuredHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	clone := *h
	clone.bound = make(fields, len(h.bound)+len(attrs))
	for k, v := range h.bound {
		clone.bound[k] = v
	}
	for _, a := range attrs {
		clone.bound.add(h.prefix, a)
	}
	return &clone
}

func (h *structuredHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = joinKey(h.prefix, name)
	return &clone
}
