package state

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeContract runs the behaviour every Store must share.
func storeContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Load(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Save(ctx, "2", []byte(`{"state":"HUB"}`), time.Hour))
	require.NoError(t, s.Save(ctx, "1", []byte(`{"state":"ROLE_SELECT"}`), 0))

	data, err := s.Load(ctx, "2")
	require.NoError(t, err)
	assert.JSONEq(t, `{"state":"HUB"}`, string(data))

	require.NoError(t, s.Save(ctx, "2", []byte(`{"state":"DETAILS_BUDGET"}`), time.Hour))
	data, err = s.Load(ctx, "2")
	require.NoError(t, err)
	assert.JSONEq(t, `{"state":"DETAILS_BUDGET"}`, string(data))

	keys, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, keys)

	require.NoError(t, s.Delete(ctx, "2"))
	require.NoError(t, s.Delete(ctx, "2"))
	_, err = s.Load(ctx, "2")
	require.ErrorIs(t, err, ErrNotFound)

	keys, err = s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, keys)
}

func TestMemoryStoreContract(t *testing.T) {
	storeContract(t, NewMemoryStore())
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Date(2024, 10, 16, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Save(ctx, "1", []byte(`{}`), time.Minute))
	require.NoError(t, s.Save(ctx, "2", []byte(`{}`), 0))

	now = now.Add(2 * time.Minute)
	_, err := s.Load(ctx, "1")
	require.ErrorIs(t, err, ErrNotFound)

	keys, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, keys)

	n, err := s.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestMemoryStoreCopiesData(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	buf := []byte(`{"a":1}`)
	require.NoError(t, s.Save(ctx, "k", buf, 0))
	buf[2] = 'b'

	data, err := s.Load(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(data))
}

func newMiniredisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStoreFromClient(client, "test:session:")
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestRedisStoreContract(t *testing.T) {
	s, _ := newMiniredisStore(t)
	storeContract(t, s)
}

func TestRedisStoreExpiry(t *testing.T) {
	ctx := context.Background()
	s, mr := newMiniredisStore(t)

	require.NoError(t, s.Save(ctx, "42", []byte(`{}`), time.Minute))
	assert.True(t, mr.Exists("test:session:42"))

	mr.FastForward(2 * time.Minute)
	_, err := s.Load(ctx, "42")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStoreDefaultPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	s := NewRedisStore(RedisOptions{Addr: mr.Addr()})
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Ping(context.Background()))
	require.NoError(t, s.Save(context.Background(), "7", []byte(`{}`), 0))
	assert.True(t, mr.Exists(defaultRedisPrefix+"7"))
}

// PROJECTBOT_TEST_PG_DSN points at a scratch database with migrations applied.
func TestPostgresStoreContract(t *testing.T) {
	dsn := os.Getenv("PROJECTBOT_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("PROJECTBOT_TEST_PG_DSN not set")
	}
	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(`DELETE FROM bot_sessions`)
	require.NoError(t, err)

	s := NewPostgresStore(db)
	require.NoError(t, s.Ping(context.Background()))
	storeContract(t, s)

	require.NoError(t, s.Save(context.Background(), "old", []byte(`{}`), time.Millisecond))
	time.Sleep(10 * time.Millisecond)
	n, err := s.Purge(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
