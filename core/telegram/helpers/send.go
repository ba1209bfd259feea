package helpers

import (
	"errors"
	"log/slog"
	"sync/atomic"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/projectbot/core/logger"
	"github.com/m3rciful/projectbot/core/telegram/sender"
)

var dispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher wires the asynchronous sender used by the Send helpers. A nil
// dispatcher makes them send synchronously.
func SetDispatcher(d *sender.Dispatcher) {
	dispatcher.Store(d)
}

func sendAsync(c tele.Context, action, method string, run func() error) error {
	disp := dispatcher.Load()
	if disp == nil {
		return run()
	}

	ctx := BuildContext(c)
	err := disp.Enqueue(ctx, action, method, run)
	if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
		logger.Warn(ctx, "tg.sender", "queue.fallback",
			slog.String("status", "retry"),
			slog.String("op", action),
			slog.String("err", err.Error()),
		)
		return run()
	}
	return err
}

// SendText sends plain text with optional reply markup.
func SendText(c tele.Context, text string, markup *tele.ReplyMarkup) error {
	opts := &tele.SendOptions{ReplyMarkup: markup}
	return sendAsync(c, "send.text", "sendMessage", func() error {
		return c.Send(text, opts)
	})
}

// SendMDV2 sends a MarkdownV2 message. Callers escape dynamic parts.
func SendMDV2(c tele.Context, text string, markup *tele.ReplyMarkup) error {
	opts := &tele.SendOptions{ParseMode: tele.ModeMarkdownV2, ReplyMarkup: markup}
	return sendAsync(c, "send.md", "sendMessage", func() error {
		return c.Send(text, opts)
	})
}

// EditOrSendMDV2 edits the message behind a callback, or sends a new one when
// there is nothing to edit.
func EditOrSendMDV2(c tele.Context, text string, markup *tele.ReplyMarkup) error {
	opts := &tele.SendOptions{ParseMode: tele.ModeMarkdownV2, ReplyMarkup: markup}
	return sendAsync(c, "edit.md", "editMessageText", func() error {
		return c.EditOrSend(text, opts)
	})
}
