package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/projectbot/core/config"
	"github.com/m3rciful/projectbot/core/logger"
	tghelpers "github.com/m3rciful/projectbot/core/telegram/helpers"
	tgsender "github.com/m3rciful/projectbot/core/telegram/sender"
)

const stopTimeout = 10 * time.Second

// Middleware is a named global middleware installed with bot.Use.
type Middleware struct {
	Name string
	Use  tele.MiddlewareFunc
}

// Route binds Handler to Endpoint, which is passed to tele.Bot.Handle as is.
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// RunOptions describes one bot process.
type RunOptions struct {
	Config   *coreconfig.Config
	Registry *Registry

	DispatcherOptions tgsender.Options

	Middlewares []Middleware
	Routes      []Route

	// KeepWebhook skips the deleteWebhook call made before long polling.
	KeepWebhook bool

	OnStart func(ctx context.Context, rt Runtime) error
	OnStop  func(ctx context.Context, rt Runtime) error
}

// Runtime is handed to the lifecycle hooks.
type Runtime struct {
	Bot        *tele.Bot
	Dispatcher *tgsender.Dispatcher
	Registry   *Registry
}

// RunTelegram builds the bot from opts and serves updates until ctx ends.
// A cancelled ctx is a clean shutdown and returns nil.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Config == nil {
		return errors.New("telegram: nil config provided")
	}
	if opts.Registry == nil {
		opts.Registry = NewRegistry()
	}

	bot, err := newBot(ctx, opts.Config)
	if err != nil {
		return err
	}
	if !opts.KeepWebhook {
		dropWebhook(ctx, bot)
	}
	install(bot, opts)

	rt := Runtime{
		Bot:        bot,
		Dispatcher: tgsender.NewDispatcher(opts.DispatcherOptions),
		Registry:   opts.Registry,
	}
	tghelpers.SetDispatcher(rt.Dispatcher)
	defer func() {
		rt.Dispatcher.Close()
		tghelpers.SetDispatcher(nil)
	}()

	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			return err
		}
	}

	serveErr := serve(ctx, bot)

	if opts.OnStop != nil {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopTimeout)
		defer cancel()
		if err := opts.OnStop(stopCtx, rt); err != nil {
			return err
		}
	}
	if errors.Is(serveErr, context.Canceled) {
		return nil
	}
	return serveErr
}

func newBot(ctx context.Context, cfg *coreconfig.Config) (*tele.Bot, error) {
	poller := BuildPoller(PollerOptions{
		RunMode:                cfg.Telegram.RunMode,
		LongPollTimeoutSeconds: cfg.Telegram.LongPollTimeoutSeconds,
		Webhook: WebhookOptions{
			Listen:      cfg.Webhook.Listen,
			Port:        cfg.Webhook.Port,
			URL:         cfg.Webhook.URL,
			SecretToken: cfg.Webhook.SecretToken,
		},
	})

	start := time.Now()
	bot, err := tele.NewBot(tele.Settings{
		Token:  cfg.Telegram.Token,
		Poller: poller,
		Client: BuildHTTPClient(cfg.Telegram.LongPollTimeoutSeconds),
	})
	if err != nil {
		return nil, fmt.Errorf("telegram: bot initialization failed: %w", err)
	}

	attrs := []slog.Attr{
		slog.String("status", "ok"),
		slog.Int64("duration_ms", logger.RoundMS(time.Since(start)).Milliseconds()),
	}
	switch p := poller.(type) {
	case *tele.Webhook:
		attrs = append(attrs,
			slog.String("mode", "webhook"),
			slog.String("listen", p.Listen),
			slog.String("public_url", p.Endpoint.PublicURL),
		)
	case *tele.LongPoller:
		attrs = append(attrs,
			slog.String("mode", "polling"),
			slog.Duration("timeout", p.Timeout),
		)
	}
	logger.Info(ctx, "tg", "mode", attrs...)
	return bot, nil
}

// dropWebhook clears a webhook left registered by an earlier deployment;
// Telegram refuses getUpdates while one is set.
func dropWebhook(ctx context.Context, bot *tele.Bot) {
	if _, polling := bot.Poller.(*tele.LongPoller); !polling {
		return
	}
	if err := bot.RemoveWebhook(false); err != nil {
		logger.Warn(ctx, "tg", "delete_webhook",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return
	}
	logger.Debug(ctx, "tg", "delete_webhook", slog.String("status", "ok"))
}

func install(bot *tele.Bot, opts RunOptions) {
	for _, mw := range opts.Middlewares {
		if mw.Use != nil {
			bot.Use(mw.Use)
		}
	}
	for _, r := range opts.Routes {
		if r.Endpoint != nil && r.Handler != nil {
			bot.Handle(r.Endpoint, r.Handler)
		}
	}
	InitBotCommands(bot, opts.Registry)
}

// serve runs the poller until it stops on its own or ctx is done.
func serve(ctx context.Context, bot *tele.Bot) error {
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		bot.Start()
	}()
	select {
	case <-stopped:
		return nil
	case <-ctx.Done():
		bot.Stop()
		<-stopped
		return ctx.Err()
	}
}
