package router

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/projectbot/core/logger"
	tghelpers "github.com/m3rciful/projectbot/core/telegram/helpers"
	"github.com/m3rciful/projectbot/core/telegram/middleware"
)

// summary runs fn under handler name and logs one handler.handled line with
// the reply counters collected by the metrics middleware.
func summary(c tele.Context, name string, fn func() error, extra ...slog.Attr) error {
	start := time.Now()
	ctx := tghelpers.WithHandler(c, name)
	err := fn()

	msgs, kb := middleware.GetCounters(c)
	attrs := []slog.Attr{
		slog.String("status", "ok"),
		slog.String("input", middleware.InputKind(c)),
		slog.Int("messages", msgs),
		slog.Bool("kb", kb),
		slog.Duration("duration", time.Since(start)),
	}
	attrs = append(attrs, extra...)
	if err == nil {
		logger.Info(ctx, "tg", "handler.handled", attrs...)
		return nil
	}
	attrs[0] = slog.String("status", "fail")
	attrs = append(attrs,
		slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		slog.String("err_code", errorCode(err)),
	)
	logger.Warn(ctx, "tg", "handler.handled", attrs...)
	return err
}

func handlerName(name string) string {
	name = strings.TrimPrefix(strings.TrimSpace(name), "/")
	if name == "" {
		return "unknown"
	}
	return strings.ToLower(strings.ReplaceAll(name, " ", "_"))
}

// errorCode maps err onto a short upper case code: Telegram API errors by
// their HTTP code, errors with a Code() method by that, anything else by its
// type name.
func errorCode(err error) string {
	var (
		flood  tele.FloodError
		apiErr *tele.Error
		coder  interface{ Code() string }
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "TIMEOUT"
	case errors.As(err, &flood):
		return "TG_FLOOD"
	case errors.As(err, &apiErr):
		return "TG_" + strconv.Itoa(apiErr.Code)
	case errors.As(err, &coder) && strings.TrimSpace(coder.Code()) != "":
		return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(coder.Code()), " ", "_"))
	}
	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Name() == "" {
		return "UNKNOWN_ERROR"
	}
	return strings.ToUpper(t.Name())
}
