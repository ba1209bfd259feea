package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/m3rciful/projectbot/core/logger"
)

// lockEntry is a per-chat mutex with a reference count so idle chats do not
// keep entries alive.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager loads and saves sessions of type T keyed by chat id and serializes
// handling per chat. Load, Save and Delete do not lock; wrap a
// read-modify-write sequence in WithLock.
type Manager[T any] struct {
	store Store
	ttl   time.Duration

	mu    sync.Mutex
	locks map[int64]*lockEntry
}

// NewManager builds a manager over store. ttl bounds idle session lifetime;
// zero keeps sessions until deleted.
func NewManager[T any](store Store, ttl time.Duration) *Manager[T] {
	return &Manager[T]{
		store: store,
		ttl:   ttl,
		locks: make(map[int64]*lockEntry),
	}
}

// Key formats a chat id as a store key.
func Key(id int64) string {
	return strconv.FormatInt(id, 10)
}

// ParseKey is the inverse of Key.
func ParseKey(key string) (int64, error) {
	return strconv.ParseInt(key, 10, 64)
}

func (m *Manager[T]) acquire(id int64) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.locks[id]
	if !ok {
		e = &lockEntry{}
		m.locks[id] = e
	}
	e.refs++
	return e
}

func (m *Manager[T]) release(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.locks[id]
	if !ok {
		return
	}
	e.refs--
	if e.refs <= 0 {
		delete(m.locks, id)
	}
}

// WithLock runs fn while holding the lock of chat id. Inputs of one chat
// are handled one at a time; different chats run in parallel.
func (m *Manager[T]) WithLock(ctx context.Context, id int64, fn func(context.Context) error) error {
	e := m.acquire(id)
	e.mu.Lock()
	defer func() {
		e.mu.Unlock()
		m.release(id)
	}()
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}

// Load decodes the session of chat id. It returns ErrNotFound when absent.
func (m *Manager[T]) Load(ctx context.Context, id int64) (*T, error) {
	data, err := m.store.Load(ctx, Key(id))
	if err != nil {
		return nil, err
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		logger.Warn(ctx, "session", "decode",
			slog.String("status", "fail"),
			slog.Int64("chat_id", id),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("%w: session %d: %v", ErrCorrupt, id, err)
	}
	return &v, nil
}

// Save encodes and stores the session of chat id with the manager ttl.
func (m *Manager[T]) Save(ctx context.Context, id int64, v *T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("state: encode session %d: %w", id, err)
	}
	return m.store.Save(ctx, Key(id), data, m.ttl)
}

// Delete drops the session of chat id.
func (m *Manager[T]) Delete(ctx context.Context, id int64) error {
	return m.store.Delete(ctx, Key(id))
}

// InProgress reports whether chat id has a live session.
func (m *Manager[T]) InProgress(ctx context.Context, id int64) bool {
	_, err := m.store.Load(ctx, Key(id))
	return err == nil
}

// IDs lists chats with live sessions. Keys that are not chat ids are skipped.
func (m *Manager[T]) IDs(ctx context.Context) ([]int64, error) {
	keys, err := m.store.List(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(keys))
	for _, k := range keys {
		id, err := ParseKey(k)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Purge removes expired sessions when the store needs it.
func (m *Manager[T]) Purge(ctx context.Context) (int64, error) {
	p, ok := m.store.(Purger)
	if !ok {
		return 0, nil
	}
	return p.Purge(ctx)
}

// RunJanitor purges expired sessions every interval until ctx is done.
func (m *Manager[T]) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := m.Purge(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn(ctx, "session", "purge",
					slog.String("status", "fail"),
					slog.String("err", err.Error()),
				)
				continue
			}
			if n > 0 {
				logger.Debug(ctx, "session", "purge",
					slog.String("status", "ok"),
					slog.Int64("removed", n),
				)
			}
		}
	}
}

// Store exposes the underlying store.
func (m *Manager[T]) Store() Store {
	return m.store
}
