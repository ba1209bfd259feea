// Package bootstrap brings up shared infrastructure in a fixed order:
// logger first, then the database when the app asked for one.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/projectbot/core/config"
	coredatabase "github.com/m3rciful/projectbot/core/database"
	"github.com/m3rciful/projectbot/core/logger"
)

// Options control the bootstrap pipeline. Nil funcs use the core defaults.
type Options struct {
	Config *coreconfig.Config
	// Database is nil when the app keeps no state in Postgres.
	Database *coredatabase.Config
	// SkipMigrations leaves the schema untouched.
	SkipMigrations bool
	// WaitTimeout bounds how long to wait for Postgres to accept connections.
	WaitTimeout time.Duration

	LoggerInit func(*coreconfig.Config) error
	WaitReady  func(context.Context, coredatabase.Config, time.Duration) error
	Connect    func(context.Context, coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(context.Context, coredatabase.Config) error
}

// Result exposes infrastructure initialized by Run.
type Result struct {
	// DB is nil when Options.Database was nil.
	DB *sqlx.DB
}

// Close releases what Run opened.
func (r *Result) Close() error {
	if r == nil || r.DB == nil {
		return nil
	}
	return r.DB.Close()
}

// Run initializes the logger and, when configured, waits for Postgres,
// connects and applies migrations.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, errors.New("bootstrap: nil config provided")
	}

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	res := &Result{}
	if opts.Database == nil {
		return res, nil
	}
	dbCfg := *opts.Database

	if opts.WaitTimeout > 0 {
		wait := opts.WaitReady
		if wait == nil {
			wait = coredatabase.WaitReady
		}
		if err := wait(ctx, dbCfg, opts.WaitTimeout); err != nil {
			return nil, fmt.Errorf("bootstrap: database not ready: %w", err)
		}
	}

	connect := opts.Connect
	if connect == nil {
		connect = coredatabase.Connect
	}
	db, err := connect(ctx, dbCfg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
	}
	res.DB = db

	if opts.SkipMigrations {
		return res, nil
	}
	migrate := opts.Migrate
	if migrate == nil {
		migrate = coredatabase.RunMigrations
	}
	if err := migrate(ctx, dbCfg); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
	}
	return res, nil
}
