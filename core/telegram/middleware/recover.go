package middleware

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/projectbot/core/logger"
	tghelpers "github.com/m3rciful/projectbot/core/telegram/helpers"
)

// RecoverMiddleware turns a handler panic into an error so one bad update
// cannot stop the poller.
func RecoverMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) (err error) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			err = fmt.Errorf("panic: %v", r)
			logger.Error(tghelpers.BuildContext(c), "tg", "panic",
				slog.String("status", "fail"),
				slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
				slog.String("stack", string(debug.Stack())),
			)
		}()
		return next(c)
	}
}
