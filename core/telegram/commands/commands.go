// Package commands describes slash commands registered with the bot.
package commands

import tele "gopkg.in/telebot.v4"

// Command is a slash command with its handler and menu metadata.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	// AdminOnly commands are hidden from the menu and gated by admin id.
	AdminOnly bool
	Hidden    bool
	Aliases   []string
}

// Visible reports whether the command belongs in the Telegram command menu.
func (c Command) Visible() bool {
	return !c.Hidden && !c.AdminOnly
}
