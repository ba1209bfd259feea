package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/projectbot/core/logger"
	"github.com/m3rciful/projectbot/core/telegram/commands"
)

// Registry holds slash commands and callback handlers keyed by unique.
type Registry struct {
	mu               sync.RWMutex
	commands         map[string]commands.Command
	callbacks        map[string]tele.HandlerFunc
	callbackNotFound tele.HandlerFunc
}

// NewRegistry returns an empty registry whose unknown-callback fallback
// answers with a short notice.
func NewRegistry() *Registry {
	return &Registry{
		commands:  make(map[string]commands.Command),
		callbacks: make(map[string]tele.HandlerFunc),
		callbackNotFound: func(c tele.Context) error {
			return c.Respond(&tele.CallbackResponse{Text: "This button is no longer active."})
		},
	}
}

func wireSkip(event, name, reason string) error {
	logger.Warn(context.Background(), "tg.wire", event,
		slog.String("status", "skip"),
		slog.String("handler", name),
		slog.String("cause", reason),
	)
	return fmt.Errorf("telegram: %s %q: %s", event, name, reason)
}

// RegisterCommand adds a command. name must start with a slash.
func (r *Registry) RegisterCommand(name string, cmd commands.Command) error {
	switch {
	case cmd.Handler == nil || cmd.Description == "":
		return wireSkip("register.command", name, "invalid")
	case !strings.HasPrefix(name, "/"):
		return wireSkip("register.command", name, "no_slash_prefix")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.commands[name]; exists {
		return wireSkip("register.command", name, "duplicate")
	}
	r.commands[name] = cmd
	return nil
}

// ListCommands returns commands sorted by name, optionally only menu-visible ones.
func (r *Registry) ListCommands(visibleOnly bool) []tele.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var list []tele.Command
	for name, meta := range r.commands {
		if visibleOnly && !meta.Visible() {
			continue
		}
		list = append(list, tele.Command{Text: name, Description: meta.Description})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Text < list[j].Text })
	return list
}

// LookupCommand finds a command by name or alias and returns its canonical name.
func (r *Registry) LookupCommand(name string) (string, commands.Command, bool) {
	name = strings.TrimSpace(name)
	if !strings.HasPrefix(name, "/") {
		name = "/" + name
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if cmd, ok := r.commands[name]; ok {
		return name, cmd, true
	}
	for key, cmd := range r.commands {
		for _, alias := range cmd.Aliases {
			if "/"+strings.TrimPrefix(alias, "/") == name {
				return key, cmd, true
			}
		}
	}
	return "", commands.Command{}, false
}

// Commands returns a copy of the registered commands.
func (r *Registry) Commands() map[string]commands.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]commands.Command, len(r.commands))
	for k, v := range r.commands {
		out[k] = v
	}
	return out
}

// RegisterCallback maps a callback unique to its handler.
func (r *Registry) RegisterCallback(key string, handler tele.HandlerFunc) error {
	if key == "" || handler == nil {
		return wireSkip("register.callback", key, "invalid")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.callbacks[key]; exists {
		return wireSkip("register.callback", key, "duplicate")
	}
	r.callbacks[key] = handler
	return nil
}

// GetCallback returns the handler registered for key.
func (r *Registry) GetCallback(key string) (tele.HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.callbacks[key]
	return h, ok
}

// ListCallbacks returns sorted callback keys.
func (r *Registry) ListCallbacks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.callbacks))
	for k := range r.callbacks {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// SetCallbackNotFound replaces the fallback for unknown callbacks.
func (r *Registry) SetCallbackNotFound(h tele.HandlerFunc) {
	if h == nil {
		return
	}
	r.mu.Lock()
	r.callbackNotFound = h
	r.mu.Unlock()
}

// CallbackNotFound returns the fallback for unknown callbacks.
func (r *Registry) CallbackNotFound() tele.HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.callbackNotFound
}

// InitBotCommands publishes the visible commands to the Telegram menu.
func InitBotCommands(bot *tele.Bot, reg *Registry) {
	if err := bot.SetCommands(reg.ListCommands(true)); err != nil {
		logger.Error(context.Background(), "tg.wire", "set_commands",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
	}
}
