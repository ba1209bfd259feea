package telegram

import (
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/projectbot/core/config"
	"github.com/m3rciful/projectbot/core/telegram/middleware"
)

// MiddlewareOptions tunes DefaultMiddlewares.
type MiddlewareOptions struct {
	// OnLimited answers updates dropped by the rate limiter.
	OnLimited tele.HandlerFunc
	// Serialize runs after logging so lock waits carry the request id.
	Serialize tele.MiddlewareFunc
}

// DefaultMiddlewares builds the global chain: recover, logger, rate limit,
// per-chat serialization, reply metrics.
func DefaultMiddlewares(cfg *coreconfig.Config, opts MiddlewareOptions) []Middleware {
	mws := []Middleware{
		{Name: "recover", Use: middleware.RecoverMiddleware},
		{Name: "logger", Use: middleware.LoggerMiddleware},
	}

	if cfg != nil {
		if interval := time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond; interval > 0 {
			ex := make(map[string]struct{}, len(cfg.RateLimit.ExcludeUpdates))
			for _, t := range cfg.RateLimit.ExcludeUpdates {
				ex[strings.ToLower(t)] = struct{}{}
			}
			mws = append(mws, Middleware{
				Name: "rate_limit",
				Use: middleware.RateLimitMiddleware(middleware.RateLimitOptions{
					Interval:  interval,
					Exclude:   ex,
					OnLimited: opts.OnLimited,
				}),
			})
		}
	}

	if opts.Serialize != nil {
		mws = append(mws, Middleware{Name: "serialize", Use: opts.Serialize})
	}
	return append(mws, Middleware{Name: "metrics", Use: middleware.MessageMetricsMiddleware})
}
