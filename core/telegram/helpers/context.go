// Package helpers bridges telebot contexts to context.Context and sends
// replies through the shared dispatcher.
package helpers

import (
	"context"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/projectbot/core/logger"
)

const (
	ctxStoreKey = "logger_ctx"
	ridKey      = "rid"
)

// ChatID returns the chat of the update, falling back to the sender for
// updates without a chat.
func ChatID(c tele.Context) int64 {
	if chat := c.Chat(); chat != nil {
		return chat.ID
	}
	if u := c.Sender(); u != nil {
		return u.ID
	}
	return 0
}

// SenderID returns the sender id or 0.
func SenderID(c tele.Context) int64 {
	if u := c.Sender(); u != nil {
		return u.ID
	}
	return 0
}

// StoreContext caches ctx on the update for downstream handlers.
func StoreContext(c tele.Context, ctx context.Context) {
	if c == nil || ctx == nil {
		return
	}
	c.Set(ctxStoreKey, ctx)
}

// ContextFrom returns the cached context, if any.
func ContextFrom(c tele.Context) (context.Context, bool) {
	if c == nil {
		return nil, false
	}
	ctx, ok := c.Get(ctxStoreKey).(context.Context)
	return ctx, ok && ctx != nil
}

// SetRID records the correlation id chosen by the logging middleware.
func SetRID(c tele.Context, rid string) {
	c.Set(ridKey, rid)
}

// BuildContext returns the cached context or derives one carrying the request
// id and update metadata used by every log line of the update.
func BuildContext(c tele.Context) context.Context {
	if cached, ok := ContextFrom(c); ok {
		return cached
	}

	updateID := c.Update().ID
	chatID, userID := ChatID(c), SenderID(c)
	rid, _ := c.Get(ridKey).(string)
	if rid == "" {
		rid = logger.BuildRID(updateID, chatID, userID)
	}

	ctx := logger.WithRID(context.Background(), rid)
	ctx = logger.WithUpdateMeta(ctx, updateID, userID, chatID)
	ctx = logger.WithLogger(ctx, logger.Component("tg"))
	StoreContext(c, ctx)
	return ctx
}

// WithHandler tags the cached context with the handler name.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := BuildContext(c)
	if handler == "" {
		return ctx
	}
	ctx = logger.WithHandler(ctx, handler)
	StoreContext(c, ctx)
	return ctx
}
