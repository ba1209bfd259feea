package router

import (
	"log/slog"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/projectbot/core/telegram"
	"github.com/m3rciful/projectbot/core/telegram/callbacks"
)

// CallbackRoute answers every callback and dispatches it by unique key
// through the registry.
func CallbackRoute(reg *tg.Registry) tg.Route {
	handler := func(c tele.Context) error {
		if c.Callback() == nil {
			return nil
		}
		key, _ := callbacks.ParseCallbackData(c.Callback())
		name := "callback." + handlerName(key)
		keyAttr := slog.String("cb_key", key)

		h, ok := reg.GetCallback(key)
		if !ok || h == nil {
			return summary(c, name, func() error {
				if fb := reg.CallbackNotFound(); fb != nil {
					return fb(c)
				}
				return c.Respond()
			}, keyAttr, slog.String("cause", "not_found"))
		}
		return summary(c, name, func() error {
			err := h(c)
			_ = c.Respond()
			return err
		}, keyAttr)
	}
	return tg.Route{Endpoint: tele.OnCallback, Handler: handler}
}
