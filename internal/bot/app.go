// Package bot wires the project wizard to Telegram: configuration, session
// storage, slash commands and the conversation handler.
package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/projectbot/core/logger"
	"github.com/m3rciful/projectbot/core/metrics"
	tg "github.com/m3rciful/projectbot/core/telegram"
	"github.com/m3rciful/projectbot/core/telegram/middleware"
	"github.com/m3rciful/projectbot/core/telegram/router"
	tgsender "github.com/m3rciful/projectbot/core/telegram/sender"
	"github.com/m3rciful/projectbot/core/telegram/state"
	"github.com/m3rciful/projectbot/internal/marketplace"
	"github.com/m3rciful/projectbot/internal/wizard"
)

// App owns every long-lived component of the bot process.
type App struct {
	cfg      *Config
	db       *sqlx.DB
	store    state.Store
	sessions *state.Manager[wizard.Session]
	market   *marketplace.Client
	files    *botFiles
	conv     *Conversation
	cmds     *Commands
	registry *tg.Registry
	ops      *metrics.Server

	stopJanitor context.CancelFunc
	background  sync.WaitGroup
}

// NewStore opens the session store selected by cfg. db is only used by the
// postgres driver.
func NewStore(cfg SessionConfig, db *sqlx.DB) (state.Store, error) {
	switch cfg.Driver {
	case DriverMemory, "":
		return state.NewMemoryStore(), nil
	case DriverPostgres:
		if db == nil {
			return nil, errors.New("bot: postgres session driver needs a database")
		}
		return state.NewPostgresStore(db), nil
	case DriverRedis:
		return state.NewRedisStore(state.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		}), nil
	}
	return nil, fmt.Errorf("bot: unknown session driver %q", cfg.Driver)
}

// New builds the application. db may be nil unless sessions live in Postgres.
func New(cfg *Config, db *sqlx.DB) (*App, error) {
	if cfg == nil {
		return nil, errors.New("bot: nil config")
	}
	market, err := marketplace.New(marketplace.Options{
		BaseURL: cfg.API.BaseURL,
		Token:   cfg.API.Token,
		Timeout: cfg.API.Timeout,
	})
	if err != nil {
		return nil, err
	}
	store, err := NewStore(cfg.Session, db)
	if err != nil {
		return nil, err
	}
	metrics.Register(prometheus.DefaultRegisterer)

	a := &App{
		cfg:      cfg,
		db:       db,
		store:    store,
		sessions: state.NewManager[wizard.Session](store, cfg.Session.TTL),
		market:   market,
		files:    &botFiles{},
		registry: tg.NewRegistry(),
	}
	machine := wizard.NewMachine(market, a.files, wizard.Config{
		Location:          cfg.Wizard.Location(),
		RequirePhone:      cfg.Wizard.RequirePhone,
		UploadConcurrency: cfg.Wizard.UploadConcurrency,
		MaxUploadBytes:    cfg.Wizard.MaxUploadBytes,
	})
	a.conv = NewConversation(machine, a.sessions)
	a.cmds = &Commands{
		conv:     a.conv,
		projects: market,
		counter:  a.sessions,
	}
	if err := a.cmds.Register(a.registry); err != nil {
		return nil, err
	}

	if cfg.Ops.Listen != "" {
		a.ops = metrics.NewServer(cfg.Ops.Listen, a.healthChecks())
	}
	return a, nil
}

func (a *App) healthChecks() map[string]metrics.HealthFunc {
	checks := map[string]metrics.HealthFunc{
		"marketplace": a.market.Ping,
	}
	if p, ok := a.store.(interface{ Ping(context.Context) error }); ok {
		checks["sessions"] = p.Ping
	}
	return checks
}

// TelegramRunOptions assembles routes, middlewares and lifecycle hooks.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	core := a.cfg.CoreConfig()

	routes := router.CommandRoutes(a.registry, router.CommandRouteOptions{
		AdminID: core.Telegram.AdminID,
	})
	routes = append(routes, router.CallbackRoute(a.registry))
	routes = append(routes, router.InputRoutes(a.conv, a.registry, router.InputOptions{
		Media: []tele.MiddlewareFunc{
			middleware.InSession(a.sessions.InProgress, a.conv.Idle),
		},
	})...)

	return tg.RunOptions{
		Config:   core,
		Registry: a.registry,
		DispatcherOptions: tgsender.Options{
			MaxRetries: 2,
		},
		Middlewares: tg.DefaultMiddlewares(core, tg.MiddlewareOptions{
			Serialize: state.Serialize(a.sessions),
		}),
		Routes:  routes,
		OnStart: a.onStart,
		OnStop:  a.onStop,
	}, nil
}

func (a *App) onStart(ctx context.Context, rt tg.Runtime) error {
	a.files.attach(rt.Bot)
	if rt.Dispatcher != nil {
		a.cmds.stats = rt.Dispatcher.Stats
	}

	jctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.stopJanitor = cancel
	a.background.Add(1)
	go func() {
		defer a.background.Done()
		a.sessions.RunJanitor(jctx, a.cfg.Session.JanitorInterval)
	}()

	if a.ops != nil {
		a.background.Add(1)
		go func() {
			defer a.background.Done()
			if err := a.ops.Start(); err != nil {
				logger.Error(ctx, "ops", "listen",
					slog.String("status", "fail"),
					slog.String("err", err.Error()),
				)
			}
		}()
	}

	logger.Info(ctx, "app", "wired",
		slog.String("status", "ok"),
		slog.String("session_driver", a.cfg.Session.Driver),
		slog.Duration("session_ttl", a.cfg.Session.TTL),
		slog.Bool("ops", a.ops != nil),
	)
	return nil
}

func (a *App) onStop(ctx context.Context, _ tg.Runtime) error {
	if a.stopJanitor != nil {
		a.stopJanitor()
	}
	var err error
	if a.ops != nil {
		err = a.ops.Shutdown(ctx)
	}

	done := make(chan struct{})
	go func() {
		a.background.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		logger.Warn(ctx, "app", "shutdown",
			slog.String("status", "fail"),
			slog.String("cause", "background_timeout"),
		)
	}
	return err
}

// Close releases the session store and the database pool.
func (a *App) Close() error {
	var errs []error
	if c, ok := a.store.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}
