// Package keyboard builds reply and inline markups.
package keyboard

import tele "gopkg.in/telebot.v4"

// Request makes a reply button ask Telegram for something instead of sending its label.
type Request int

const (
	RequestNone Request = iota
	RequestLocation
	RequestContact
)

// Button is one reply keyboard button.
type Button struct {
	Text    string
	Request Request
}

// InlineBtn describes an inline button with callback data.
type InlineBtn struct {
	Text   string
	Unique string
	Data   string
}

// RemoveKeyboard returns a markup that hides the reply keyboard.
func RemoveKeyboard() *tele.ReplyMarkup {
	return &tele.ReplyMarkup{RemoveKeyboard: true}
}

// Reply builds a resized reply keyboard. Empty rows are skipped and an
// empty layout yields RemoveKeyboard.
func Reply(rows ...[]Button) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{ResizeKeyboard: true}
	var keyboard []tele.Row
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		buttons := make([]tele.Btn, 0, len(row))
		for _, b := range row {
			switch b.Request {
			case RequestLocation:
				buttons = append(buttons, markup.Location(b.Text))
			case RequestContact:
				buttons = append(buttons, markup.Contact(b.Text))
			default:
				buttons = append(buttons, markup.Text(b.Text))
			}
		}
		keyboard = append(keyboard, markup.Row(buttons...))
	}
	if len(keyboard) == 0 {
		return RemoveKeyboard()
	}
	markup.Reply(keyboard...)
	return markup
}

// ReplyButtons builds a reply keyboard from rows of plain labels.
func ReplyButtons(rows ...[]string) *tele.ReplyMarkup {
	out := make([][]Button, len(rows))
	for i, row := range rows {
		for _, label := range row {
			out[i] = append(out[i], Button{Text: label})
		}
	}
	return Reply(out...)
}

// InlineButtonsRows builds an inline keyboard from rows of InlineBtn.
func InlineButtonsRows(rows ...[]InlineBtn) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	inline := make([][]tele.InlineButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		r := make([]tele.InlineButton, len(row))
		for j, btn := range row {
			r[j] = *markup.Data(btn.Text, btn.Unique, btn.Data).Inline()
		}
		inline = append(inline, r)
	}
	markup.InlineKeyboard = inline
	return markup
}

// Chunk splits buttons into rows of up to n. n <= 1 puts one per row.
func Chunk[T any](items []T, n int) [][]T {
	if n < 1 {
		n = 1
	}
	rows := make([][]T, 0, (len(items)+n-1)/n)
	for i := 0; i < len(items); i += n {
		end := min(i+n, len(items))
		rows = append(rows, items[i:end])
	}
	return rows
}
