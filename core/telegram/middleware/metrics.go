package middleware

import (
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/projectbot/core/metrics"
)

const (
	messagesKey = "messages"
	keyboardKey = "kb"
)

// countingContext counts replies sent by a handler and whether any carried a
// keyboard.
type countingContext struct{ tele.Context }

func (m countingContext) record(opts []any) {
	kb := false
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			kb = kb || (v != nil && v.ReplyMarkup != nil)
		case *tele.ReplyMarkup:
			kb = kb || v != nil
		}
	}
	n, _ := m.Get(messagesKey).(int)
	m.Set(messagesKey, n+1)
	if kb {
		m.Set(keyboardKey, true)
	}
	metrics.RecordMessage(kb)
}

func (m countingContext) Send(what any, opts ...any) error {
	err := m.Context.Send(what, opts...)
	if err == nil {
		m.record(opts)
	}
	return err
}

func (m countingContext) Reply(what any, opts ...any) error {
	err := m.Context.Reply(what, opts...)
	if err == nil {
		m.record(opts)
	}
	return err
}

func (m countingContext) Edit(what any, opts ...any) error {
	err := m.Context.Edit(what, opts...)
	if err == nil {
		m.record(opts)
	}
	return err
}

func (m countingContext) EditOrSend(what any, opts ...any) error {
	err := m.Context.EditOrSend(what, opts...)
	if err == nil {
		m.record(opts)
	}
	return err
}

// MessageMetricsMiddleware counts outgoing replies per update for handler
// summaries and the Prometheus message counter.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		c.Set(messagesKey, 0)
		c.Set(keyboardKey, false)
		return next(countingContext{Context: c})
	}
}

// GetCounters returns the reply count and keyboard flag of the update.
func GetCounters(c tele.Context) (int, bool) {
	n, _ := c.Get(messagesKey).(int)
	kb, _ := c.Get(keyboardKey).(bool)
	return n, kb
}
