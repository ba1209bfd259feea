package bot

import (
	"context"
	"errors"
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/projectbot/core/logger"
	tghelpers "github.com/m3rciful/projectbot/core/telegram/helpers"
	"github.com/m3rciful/projectbot/core/telegram/keyboard"
	"github.com/m3rciful/projectbot/core/telegram/state"
	"github.com/m3rciful/projectbot/internal/wizard"
)

const (
	msgIdle        = "Send /new to start a project."
	msgNothingToDo = "There is no project in progress. " + msgIdle
	msgBroken      = "⚠️ Something went wrong with this conversation. It was reset, please start again with /new."
)

// Sessions is the persistence the conversation needs.
type Sessions interface {
	Load(ctx context.Context, id int64) (*wizard.Session, error)
	Save(ctx context.Context, id int64, s *wizard.Session) error
	Delete(ctx context.Context, id int64) error
}

// Conversation binds the wizard machine to Telegram updates and the
// session store. Callers serialize updates per chat.
type Conversation struct {
	machine  *wizard.Machine
	sessions Sessions
	clock    func() time.Time
	send     func(c tele.Context, text string, markup *tele.ReplyMarkup) error
}

// NewConversation builds a conversation over machine and sessions.
func NewConversation(machine *wizard.Machine, sessions Sessions) *Conversation {
	return &Conversation{
		machine:  machine,
		sessions: sessions,
		clock:    time.Now,
		send:     tghelpers.SendText,
	}
}

// HandleInput feeds one text or media update to the wizard. A chat without a
// session starts one, so the first message already lands on the role menu.
func (cv *Conversation) HandleInput(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	chatID := tghelpers.ChatID(c)
	in, ok := toInput(c)
	if !ok || chatID == 0 {
		return nil
	}

	s, err := cv.load(ctx, chatID)
	if err != nil {
		return err
	}
	if s == nil {
		s = wizard.NewSession(in.From.ID, cv.clock())
		if in.Kind != wizard.InputText && in.Kind != wizard.InputContact {
			return cv.finish(ctx, c, chatID, s, cv.machine.Start(s))
		}
	}

	rep, err := cv.machine.Handle(ctx, s, in)
	if err != nil {
		// The stored session cannot be driven any further; drop it.
		_ = cv.sessions.Delete(ctx, chatID)
		_ = cv.send(c, msgBroken, keyboard.RemoveKeyboard())
		return err
	}
	return cv.finish(ctx, c, chatID, s, rep)
}

// Start begins a new project, keeping the user's phone and account.
func (cv *Conversation) Start(c tele.Context) error {
	return cv.reset(c, func(s *wizard.Session) wizard.Reply { return cv.machine.Start(s) })
}

// Restart clears the current answers and shows the role menu.
func (cv *Conversation) Restart(c tele.Context) error {
	return cv.reset(c, func(s *wizard.Session) wizard.Reply { return cv.machine.Restart(s) })
}

// Resume shows the current step again, or starts when nothing is in progress.
func (cv *Conversation) Resume(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	chatID := tghelpers.ChatID(c)
	s, err := cv.load(ctx, chatID)
	if err != nil {
		return err
	}
	if s == nil {
		s = wizard.NewSession(tghelpers.SenderID(c), cv.clock())
		return cv.finish(ctx, c, chatID, s, cv.machine.Start(s))
	}
	return cv.finish(ctx, c, chatID, s, cv.machine.View(s))
}

// Cancel drops the conversation of the chat.
func (cv *Conversation) Cancel(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	chatID := tghelpers.ChatID(c)
	s, err := cv.load(ctx, chatID)
	if err != nil {
		return err
	}
	if s == nil {
		return cv.send(c, msgNothingToDo, keyboard.RemoveKeyboard())
	}
	return cv.finish(ctx, c, chatID, s, cv.machine.Cancel(s))
}

// Idle answers media sent outside a conversation.
func (cv *Conversation) Idle(c tele.Context) error {
	return cv.send(c, msgIdle, nil)
}

func (cv *Conversation) reset(c tele.Context, fn func(*wizard.Session) wizard.Reply) error {
	ctx := tghelpers.BuildContext(c)
	chatID := tghelpers.ChatID(c)
	s, err := cv.load(ctx, chatID)
	if err != nil {
		return err
	}
	if s == nil {
		s = wizard.NewSession(tghelpers.SenderID(c), cv.clock())
	}
	return cv.finish(ctx, c, chatID, s, fn(s))
}

// load returns nil without error when the chat has no session. A session
// that cannot be decoded is dropped and treated as absent.
func (cv *Conversation) load(ctx context.Context, chatID int64) (*wizard.Session, error) {
	s, err := cv.sessions.Load(ctx, chatID)
	switch {
	case err == nil:
		return s, nil
	case errors.Is(err, state.ErrNotFound):
		return nil, nil
	case errors.Is(err, state.ErrCorrupt):
		logger.Warn(ctx, "session", "load",
			slog.String("status", "fail"),
			slog.String("cause", "corrupt"),
			slog.String("err", err.Error()),
		)
		if derr := cv.sessions.Delete(ctx, chatID); derr != nil {
			return nil, derr
		}
		return nil, nil
	}
	return nil, err
}

// finish persists s according to rep and sends the reply.
func (cv *Conversation) finish(ctx context.Context, c tele.Context, chatID int64, s *wizard.Session, rep wizard.Reply) error {
	var err error
	if rep.Ended {
		err = cv.sessions.Delete(ctx, chatID)
	} else {
		err = cv.sessions.Save(ctx, chatID, s)
	}
	if err != nil {
		logger.Error(ctx, "session", "persist",
			slog.String("status", "fail"),
			slog.String("state", string(rep.State)),
			slog.String("err", err.Error()),
		)
		return err
	}

	mk := markup(rep.Menu)
	if rep.Ended {
		mk = keyboard.RemoveKeyboard()
	}
	return cv.send(c, rep.Text, mk)
}
