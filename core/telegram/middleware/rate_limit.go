package middleware

import (
	"log/slog"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/projectbot/core/logger"
	tghelpers "github.com/m3rciful/projectbot/core/telegram/helpers"
)

// RateLimitOptions configures RateLimitMiddleware.
type RateLimitOptions struct {
	Interval time.Duration
	// Exclude lists update kinds (callback, message, inline_query) that bypass the limit.
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
	now       func() time.Time
}

type limiter struct {
	interval time.Duration
	now      func() time.Time

	mu       sync.Mutex
	lastSeen map[int64]time.Time
	sweeps   int
}

// allow records a hit for id and reports whether it is outside the interval.
func (l *limiter) allow(id int64) bool {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweeps++
	if l.sweeps >= 1024 {
		l.sweeps = 0
		for k, t := range l.lastSeen {
			if now.Sub(t) >= l.interval {
				delete(l.lastSeen, k)
			}
		}
	}

	if last, ok := l.lastSeen[id]; ok && now.Sub(last) < l.interval {
		return false
	}
	l.lastSeen[id] = now
	return true
}

func updateKind(u tele.Update) string {
	switch {
	case u.Callback != nil:
		return "callback"
	case u.Message != nil:
		return "message"
	case u.Query != nil:
		return "inline_query"
	}
	return "other"
}

// RateLimitMiddleware drops updates a sender makes within Interval of the
// previous accepted one.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	now := opts.now
	if now == nil {
		now = time.Now
	}
	lim := &limiter{interval: opts.Interval, now: now, lastSeen: make(map[int64]time.Time)}

	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Interval <= 0 {
				return next(c)
			}
			if _, skip := opts.Exclude[updateKind(c.Update())]; skip {
				return next(c)
			}
			if lim.allow(user.ID) {
				return next(c)
			}

			logger.Warn(tghelpers.BuildContext(c), "tg", "rate_limit",
				slog.String("status", "rate_limited"),
			)
			if opts.OnLimited != nil {
				_ = opts.OnLimited(c)
			}
			return nil
		}
	}
}
