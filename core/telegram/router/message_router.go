package router

import (
	"strings"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/projectbot/core/telegram"
)

// Conversation consumes free-form input: text that is not a command, and
// shared media.
type Conversation interface {
	HandleInput(c tele.Context) error
}

// InputOptions wraps photo and document routes, for example with a session
// gate. Locations and contacts are never wrapped.
type InputOptions struct {
	Media []tele.MiddlewareFunc
}

// InputRoutes routes text and media updates. Slash text naming a command
// alias runs that command; everything else goes to conv.
func InputRoutes(conv Conversation, reg *tg.Registry, opts InputOptions) []tg.Route {
	text := func(c tele.Context) error {
		if reg != nil && strings.HasPrefix(c.Text(), "/") {
			if key, cmd, ok := reg.LookupCommand(commandWord(c.Text())); ok && cmd.Handler != nil && !cmd.AdminOnly {
				return summary(c, "cmd."+handlerName(key), func() error { return cmd.Handler(c) })
			}
		}
		return summary(c, "wizard", func() error { return conv.HandleInput(c) })
	}

	plain := func(c tele.Context) error {
		return summary(c, "wizard", func() error { return conv.HandleInput(c) })
	}
	media := plain
	for i := len(opts.Media) - 1; i >= 0; i-- {
		media = opts.Media[i](media)
	}

	return []tg.Route{
		{Endpoint: tele.OnText, Handler: text},
		{Endpoint: tele.OnPhoto, Handler: media},
		{Endpoint: tele.OnDocument, Handler: media},
		{Endpoint: tele.OnLocation, Handler: plain},
		{Endpoint: tele.OnContact, Handler: plain},
	}
}

// commandWord returns "/name" from "/name@bot args".
func commandWord(text string) string {
	word, _, _ := strings.Cut(strings.TrimSpace(text), " ")
	word, _, _ = strings.Cut(word, "@")
	return word
}
