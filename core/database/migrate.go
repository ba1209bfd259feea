package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/m3rciful/projectbot/core/logger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsDir = "migrations"

func newMigrator(cfg Config) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("init migrations: %w", err)
	}
	return m, nil
}

func closeMigrator(ctx context.Context, m *migrate.Migrate) {
	srcErr, dbErr := m.Close()
	if err := errors.Join(srcErr, dbErr); err != nil {
		logger.Warn(ctx, "db.migrate", "close",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
	}
}

// RunMigrations waits for Postgres and applies every pending up migration.
func RunMigrations(ctx context.Context, cfg Config) error {
	if err := WaitReady(ctx, cfg, 30*time.Second); err != nil {
		logger.Error(ctx, "db.migrate", "wait",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return err
	}

	files := listMigrationFiles(migrationsFS, migrationsDir)
	preview, truncated := logger.SummarizeStrings(files, 6)
	logger.Debug(ctx, "db.migrate", "resolve",
		slog.String("status", "ok"),
		slog.Int("count", len(files)),
		slog.String("payload", preview),
		slog.Bool("collapsed", truncated),
	)

	m, err := newMigrator(cfg)
	if err != nil {
		logger.Error(ctx, "db.migrate", "init",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return err
	}
	defer closeMigrator(ctx, m)

	fromVer, _, _ := m.Version()
	start := time.Now()
	upErr := m.Up()
	took := logger.RoundMS(time.Since(start))

	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		logger.Error(ctx, "db.migrate", "apply",
			slog.String("status", "fail"),
			slog.Int64("duration_ms", took.Milliseconds()),
			slog.String("err", upErr.Error()),
		)
		return fmt.Errorf("migration execution failed: %w", upErr)
	}

	toVer, _, _ := m.Version()
	applied := selectApplied(files, uint64(fromVer), uint64(toVer))
	attrs := []slog.Attr{
		slog.String("status", "ok"),
		slog.Uint64("from_ver", uint64(fromVer)),
		slog.Uint64("to_ver", uint64(toVer)),
		slog.Int("count", len(applied)),
		slog.Int64("duration_ms", took.Milliseconds()),
	}
	if names, _ := logger.SummarizeStrings(applied, 6); names != "" {
		attrs = append(attrs, slog.String("payload", names))
	}
	logger.Info(ctx, "db.migrate", "summary", attrs...)
	return nil
}

// RollbackMigrations reverts the last steps migrations.
func RollbackMigrations(ctx context.Context, cfg Config, steps int) error {
	if steps <= 0 {
		return fmt.Errorf("rollback steps must be > 0")
	}
	m, err := newMigrator(cfg)
	if err != nil {
		return err
	}
	defer closeMigrator(ctx, m)

	if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Error(ctx, "db.migrate", "rollback",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("rollback failed: %w", err)
	}
	ver, dirty, _ := m.Version()
	logger.Info(ctx, "db.migrate", "rollback",
		slog.String("status", "ok"),
		slog.Int("count", steps),
		slog.Uint64("to_ver", uint64(ver)),
		slog.Bool("dirty", dirty),
	)
	return nil
}

// MigrationVersion reports the applied schema version. A database without
// migrations reports version 0.
func MigrationVersion(ctx context.Context, cfg Config) (uint, bool, error) {
	m, err := newMigrator(cfg)
	if err != nil {
		return 0, false, err
	}
	defer closeMigrator(ctx, m)

	ver, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return ver, dirty, err
}

func listMigrationFiles(fsys fs.FS, dir string) []string {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if name := e.Name(); strings.HasSuffix(name, ".up.sql") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func parseVersion(name string) uint64 {
	prefix, _, _ := strings.Cut(name, "_")
	v, _ := strconv.ParseUint(prefix, 10, 64)
	return v
}

func selectApplied(files []string, from, to uint64) []string {
	if to <= from {
		return nil
	}
	var out []string
	for _, f := range files {
		if v := parseVersion(f); v > from && v <= to {
			out = append(out, f)
		}
	}
	return out
}
