package router

import (
	"context"
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/projectbot/core/logger"
	tg "github.com/m3rciful/projectbot/core/telegram"
	"github.com/m3rciful/projectbot/core/telegram/middleware"
)

// CommandRouteOptions configures CommandRoutes.
type CommandRouteOptions struct {
	AdminID       int64
	OnAdminReject tele.HandlerFunc
}

// CommandRoutes binds every registered command, gating admin-only ones.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}
	admin := middleware.AdminOnlyMiddleware(middleware.AdminOptions{
		AdminID:  opts.AdminID,
		OnReject: opts.OnAdminReject,
	})

	cmds := reg.Commands()
	routes := make([]tg.Route, 0, len(cmds))
	for name, def := range cmds {
		h := def.Handler
		if def.AdminOnly {
			h = admin(h)
		}
		routeName := "cmd." + handlerName(name)
		routes = append(routes, tg.Route{
			Endpoint: name,
			Handler: func(c tele.Context) error {
				return summary(c, routeName, func() error { return h(c) })
			},
		})
	}

	logger.Info(context.Background(), "tg.wire", "commands",
		slog.String("status", "ok"),
		slog.Int("count", len(cmds)),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)
	return routes
}
