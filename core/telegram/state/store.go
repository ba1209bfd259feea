package state

import (
	"context"
	"errors"
	"sort"
	"time"
)

var (
	// ErrNotFound is returned when no live session exists for a key.
	ErrNotFound = errors.New("state: session not found")
	// ErrCorrupt is returned when stored data no longer decodes.
	ErrCorrupt = errors.New("state: session data corrupt")
)

// Store persists encoded sessions by key. A zero ttl keeps the entry until
// it is deleted.
type Store interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) ([]string, error)
}

// Purger is implemented by stores that need expired entries removed actively.
type Purger interface {
	Purge(ctx context.Context) (int64, error)
}

func sortedCopy(keys []string) []string {
	out := append([]string(nil), keys...)
	sort.Strings(out)
	return out
}
