package middleware

import (
	"context"
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/projectbot/core/logger"
	"github.com/m3rciful/projectbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/projectbot/core/telegram/helpers"
)

// InputKind names the payload of a message update for logs.
func InputKind(c tele.Context) string {
	msg := c.Message()
	switch {
	case c.Callback() != nil:
		return "callback"
	case msg == nil:
		return "other"
	case msg.Location != nil:
		return "location"
	case msg.Contact != nil:
		return "contact"
	case msg.Photo != nil:
		return "photo"
	case msg.Document != nil:
		return "document"
	case msg.Text != "":
		return "text"
	}
	return "other"
}

// LoggerMiddleware assigns the request id, caches the logging context and
// writes one sampled debug line per received update.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		upd := c.Update()
		chatID, userID := tghelpers.ChatID(c), tghelpers.SenderID(c)
		rid := logger.BuildRID(upd.ID, chatID, userID)
		tghelpers.SetRID(c, rid)

		ctx := logger.WithRID(context.Background(), rid)
		ctx = logger.WithUpdateMeta(ctx, upd.ID, userID, chatID)
		ctx = logger.WithLogger(ctx, logger.Component("tg"))
		tghelpers.StoreContext(c, ctx)

		if !logger.ShouldSampleDebug() {
			return next(c)
		}

		attrs := []slog.Attr{
			slog.String("status", "ok"),
			slog.String("input", InputKind(c)),
		}
		if chat := c.Chat(); chat != nil {
			attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
		}
		if u := c.Sender(); u != nil {
			if u.Username != "" {
				attrs = append(attrs, slog.String("username", logger.SanitizeLimit(u.Username, 64)))
			}
			if u.LanguageCode != "" {
				attrs = append(attrs, slog.String("lang", u.LanguageCode))
			}
		}
		if cb := c.Callback(); cb != nil {
			key, payload := callbacks.ParseCallbackData(cb)
			attrs = append(attrs,
				slog.String("cb_key", logger.SanitizeLimit(key, 128)),
				slog.String("payload", logger.SanitizeLimit(payload, 256)),
			)
		} else if t := c.Text(); t != "" {
			attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(t, 256)))
		}
		logger.Debug(ctx, "tg", "update.received", attrs...)

		return next(c)
	}
}
