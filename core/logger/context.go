package logger

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
)

type ctxKey int

const (
	metaKey ctxKey = iota
	loggerKey
)

// updateMeta identifies the Telegram update a context belongs to. It is
// stored by value and copied on every change so derived contexts never see
// later edits.
type updateMeta struct {
	rid      string
	updateID int
	userID   int64
	chatID   int64
	handler  string
}

func metaFrom(ctx context.Context) updateMeta {
	if ctx == nil {
		return updateMeta{}
	}
	m, _ := ctx.Value(metaKey).(updateMeta)
	return m
}

func withMeta(ctx context.Context, edit func(*updateMeta)) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	m := metaFrom(ctx)
	edit(&m)
	return context.WithValue(ctx, metaKey, m)
}

// WithLogger makes log the logger returned by FromContext.
func WithLogger(ctx context.Context, log *slog.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if log == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerKey, log)
}

// FromContext returns the logger stored by WithLogger, or the process logger.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
			return l
		}
	}
	return base
}

// WithRID sets the correlation id.
func WithRID(ctx context.Context, rid string) context.Context {
	return withMeta(ctx, func(m *updateMeta) { m.rid = rid })
}

// RIDFrom returns the correlation id or "".
func RIDFrom(ctx context.Context) string { return metaFrom(ctx).rid }

// WithUpdateMeta records the update, user and chat ids.
func WithUpdateMeta(ctx context.Context, updateID int, userID, chatID int64) context.Context {
	return withMeta(ctx, func(m *updateMeta) {
		m.updateID = updateID
		m.userID = userID
		m.chatID = chatID
	})
}

// WithHandler names the handler serving the update. Empty names are ignored.
func WithHandler(ctx context.Context, handler string) context.Context {
	if handler == "" {
		if ctx == nil {
			return context.Background()
		}
		return ctx
	}
	return withMeta(ctx, func(m *updateMeta) { m.handler = handler })
}

func HandlerFrom(ctx context.Context) string { return metaFrom(ctx).handler }

func UserIDFrom(ctx context.Context) int64 { return metaFrom(ctx).userID }

func ChatIDFrom(ctx context.Context) int64 { return metaFrom(ctx).chatID }

func UpdateIDFrom(ctx context.Context) int { return metaFrom(ctx).updateID }

// BuildRID joins the ids as updateID:chatID:userID.
func BuildRID(updateID int, chatID, userID int64) string {
	b := make([]byte, 0, 48)
	b = strconv.AppendInt(b, int64(updateID), 10)
	b = append(b, ':')
	b = strconv.AppendInt(b, chatID, 10)
	b = append(b, ':')
	b = strconv.AppendInt(b, userID, 10)
	return string(b)
}

// CompactRID rewrites a BuildRID value as dot separated base36 numbers.
// Anything else is returned trimmed but otherwise unchanged.
func CompactRID(rid string) string {
	rid = strings.TrimSpace(rid)
	parts := strings.Split(rid, ":")
	if len(parts) != 3 {
		return rid
	}
	out := make([]byte, 0, len(rid))
	for i, p := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return rid
		}
		if i > 0 {
			out = append(out, '.')
		}
		out = strconv.AppendInt(out, n, 36)
	}
	return string(out)
}
