package bot

import (
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/projectbot/core/telegram/keyboard"
	"github.com/m3rciful/projectbot/internal/wizard"
)

// toInput translates a telebot update into a wizard input. ok is false for
// message kinds the conversation does not understand.
func toInput(c tele.Context) (in wizard.Input, ok bool) {
	if u := c.Sender(); u != nil {
		in.From = wizard.Sender{ID: u.ID, Name: displayName(u)}
	}
	msg := c.Message()
	if msg == nil {
		return in, false
	}

	switch {
	case msg.Location != nil:
		in.Kind = wizard.InputLocation
		in.Location = &wizard.Coordinate{Lat: float64(msg.Location.Lat), Lng: float64(msg.Location.Lng)}
	case msg.Contact != nil:
		in.Kind = wizard.InputContact
		// Only the sender's own number counts as registration.
		if msg.Contact.UserID == 0 || msg.Contact.UserID == in.From.ID {
			in.Phone = normalizePhone(msg.Contact.PhoneNumber)
		}
	case msg.Photo != nil:
		in.Kind = wizard.InputPhoto
		in.File = &wizard.Attachment{
			FileID: msg.Photo.FileID,
			Name:   fmt.Sprintf("photo_%d.jpg", msg.ID),
			MIME:   "image/jpeg",
			Size:   int64(msg.Photo.FileSize),
		}
	case msg.Document != nil:
		in.Kind = wizard.InputDocument
		in.File = &wizard.Attachment{
			FileID: msg.Document.FileID,
			Name:   msg.Document.FileName,
			MIME:   msg.Document.MIME,
			Size:   int64(msg.Document.FileSize),
		}
	case msg.Text != "":
		in.Kind = wizard.InputText
		in.Text = msg.Text
	default:
		return in, false
	}
	return in, true
}

func displayName(u *tele.User) string {
	name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	if name == "" {
		name = u.Username
	}
	return name
}

// normalizePhone keeps a leading plus and digits.
func normalizePhone(raw string) string {
	raw = wizard.NormalizeDigits(strings.TrimSpace(raw))
	var b strings.Builder
	for i, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	out := b.String()
	if out != "" && out[0] != '+' {
		out = "+" + out
	}
	if out == "+" {
		return ""
	}
	return out
}

// markup renders a wizard menu as a reply keyboard.
func markup(m wizard.Menu) *tele.ReplyMarkup {
	rows := make([][]keyboard.Button, 0, len(m.Rows))
	for _, row := range m.Rows {
		out := make([]keyboard.Button, 0, len(row))
		for _, ch := range row {
			b := keyboard.Button{Text: ch.Label}
			switch ch.Request {
			case wizard.RequestLocation:
				b.Request = keyboard.RequestLocation
			case wizard.RequestContact:
				b.Request = keyboard.RequestContact
			}
			out = append(out, b)
		}
		rows = append(rows, out)
	}
	return keyboard.Reply(rows...)
}
