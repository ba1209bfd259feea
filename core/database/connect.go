package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/m3rciful/projectbot/core/logger"
)

// Connect opens the pool, verifies connectivity and applies pool limits.
func Connect(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	attrs := []slog.Attr{
		slog.String("driver", "postgres"),
		slog.String("host", cfg.Host),
		slog.String("port", cfg.Port),
		slog.String("db", cfg.Name),
	}

	start := time.Now()
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DSN())
	took := logger.RoundMS(time.Since(start))
	if err != nil {
		logger.Error(ctx, "db", "connect", append(attrs,
			slog.String("status", "fail"),
			slog.Int64("duration_ms", took.Milliseconds()),
			slog.String("err", err.Error()),
		)...)
		return nil, fmt.Errorf("db connect: %w", err)
	}

	if cfg.MaxConnections > 0 {
		db.SetMaxOpenConns(cfg.MaxConnections)
		db.SetMaxIdleConns(cfg.MaxConnections)
	}

	logger.Info(ctx, "db", "connect", append(attrs,
		slog.String("status", "ok"),
		slog.Int("pool_open", cfg.MaxConnections),
		slog.Int64("duration_ms", took.Milliseconds()),
	)...)
	return db, nil
}

// WaitReady pings Postgres every two seconds until it answers or timeout passes.
func WaitReady(ctx context.Context, cfg Config, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var lastErr error
	for attempt := 1; ; attempt++ {
		db, err := sqlx.Open("postgres", cfg.DSN())
		if err == nil {
			err = db.PingContext(ctx)
			_ = db.Close()
			if err == nil {
				return nil
			}
		}
		lastErr = err
		logger.Debug(ctx, "db", "wait",
			slog.String("status", "retry"),
			slog.Int("attempts", attempt),
			slog.String("err", err.Error()),
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("database not ready after %s: %w", timeout, lastErr)
		case <-time.After(2 * time.Second):
		}
	}
}
