package state

import (
	"context"

	tele "gopkg.in/telebot.v4"

	tghelpers "github.com/m3rciful/projectbot/core/telegram/helpers"
)

// Serialize makes handlers of one chat run one at a time. Updates without a
// chat or sender pass through unlocked.
func Serialize[T any](mgr *Manager[T]) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			id := tghelpers.ChatID(c)
			if id == 0 {
				return next(c)
			}
			ctx := tghelpers.BuildContext(c)
			return mgr.WithLock(ctx, id, func(context.Context) error {
				return next(c)
			})
		}
	}
}
