package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// PostgresStore keeps sessions in the bot_sessions table created by the
// embedded migrations.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore wraps an open connection pool.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type sessionRow struct {
	Key       string       `db:"key"`
	Data      string       `db:"data"`
	ExpiresAt sql.NullTime `db:"expires_at"`
}

const (
	pgLoad = `SELECT data FROM bot_sessions
WHERE key = $1 AND (expires_at IS NULL OR expires_at > now())`

	pgSave = `INSERT INTO bot_sessions (key, data, expires_at, updated_at)
VALUES (:key, :data, :expires_at, now())
ON CONFLICT (key) DO UPDATE
SET data = EXCLUDED.data, expires_at = EXCLUDED.expires_at, updated_at = now()`

	pgDelete = `DELETE FROM bot_sessions WHERE key = $1`

	pgList = `SELECT key FROM bot_sessions
WHERE expires_at IS NULL OR expires_at > now()
ORDER BY key`

	pgPurge = `DELETE FROM bot_sessions WHERE expires_at IS NOT NULL AND expires_at <= now()`
)

// Load returns the live session or ErrNotFound.
func (s *PostgresStore) Load(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	if err := s.db.GetContext(ctx, &data, pgLoad, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("state: pg load: %w", err)
	}
	return data, nil
}

// Save upserts the session. data must be a JSON document.
func (s *PostgresStore) Save(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	row := sessionRow{Key: key, Data: string(data)}
	if ttl > 0 {
		row.ExpiresAt = sql.NullTime{Time: time.Now().Add(ttl), Valid: true}
	}
	if _, err := s.db.NamedExecContext(ctx, pgSave, row); err != nil {
		return fmt.Errorf("state: pg save: %w", err)
	}
	return nil
}

// Delete removes the session if present.
func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, pgDelete, key); err != nil {
		return fmt.Errorf("state: pg delete: %w", err)
	}
	return nil
}

// List returns the keys of live sessions.
func (s *PostgresStore) List(ctx context.Context) ([]string, error) {
	var keys []string
	if err := s.db.SelectContext(ctx, &keys, pgList); err != nil {
		return nil, fmt.Errorf("state: pg list: %w", err)
	}
	return keys, nil
}

// Purge deletes expired rows.
func (s *PostgresStore) Purge(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, pgPurge)
	if err != nil {
		return 0, fmt.Errorf("state: pg purge: %w", err)
	}
	return res.RowsAffected()
}

// Ping checks connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
