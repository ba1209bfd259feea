package middleware

import (
	"context"
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/projectbot/core/logger"
	tghelpers "github.com/m3rciful/projectbot/core/telegram/helpers"
)

// SessionCheck reports whether chat id has a conversation in progress.
type SessionCheck func(ctx context.Context, id int64) bool

// InSession passes updates only for chats with a live session. Others go to
// onIdle, which may be nil to drop them silently.
func InSession(active SessionCheck, onIdle tele.HandlerFunc) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			ctx := tghelpers.BuildContext(c)
			id := tghelpers.ChatID(c)
			if active != nil && active(ctx, id) {
				return next(c)
			}
			logger.Debug(ctx, "tg", "session.gate",
				slog.String("status", "skip"),
				slog.String("input", InputKind(c)),
			)
			if onIdle != nil {
				return onIdle(c)
			}
			return nil
		}
	}
}
