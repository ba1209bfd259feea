package state

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "projectbot:session:"

// far future score for entries without a ttl
const noExpiryScore = 4102444800

// RedisStore keeps sessions as Redis strings with native expiry. A sorted set
// indexes keys by expiry time so List does not need SCAN.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// RedisOptions configures NewRedisStore.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// NewRedisStore dials Redis lazily; the first command opens the connection.
func NewRedisStore(opts RedisOptions) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return NewRedisStoreFromClient(client, opts.Prefix)
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(k string) string { return s.prefix + k }

func (s *RedisStore) indexKey() string { return s.prefix + "index" }

// Load returns the stored bytes or ErrNotFound.
func (s *RedisStore) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("state: redis get: %w", err)
	}
	return data, nil
}

// Save writes the value and its index entry in one pipeline.
func (s *RedisStore) Save(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	score := float64(noExpiryScore)
	if ttl > 0 {
		score = float64(time.Now().Add(ttl).Unix())
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(key), data, ttl)
	pipe.ZAdd(ctx, s.indexKey(), redis.Z{Score: score, Member: key})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("state: redis save: %w", err)
	}
	return nil
}

// Delete removes the value and its index entry.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key(key))
	pipe.ZRem(ctx, s.indexKey(), key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("state: redis delete: %w", err)
	}
	return nil
}

// List prunes expired index entries and returns the rest in key order.
func (s *RedisStore) List(ctx context.Context) ([]string, error) {
	if _, err := s.Purge(ctx); err != nil {
		return nil, err
	}
	keys, err := s.client.ZRangeByScore(ctx, s.indexKey(), &redis.ZRangeBy{Min: "-inf", Max: "+inf"}).Result()
	if err != nil {
		return nil, fmt.Errorf("state: redis list: %w", err)
	}
	return sortedCopy(keys), nil
}

// Purge drops index entries whose values already expired.
func (s *RedisStore) Purge(ctx context.Context) (int64, error) {
	cutoff := strconv.FormatInt(time.Now().Unix(), 10)
	n, err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", "("+cutoff).Result()
	if err != nil {
		return 0, fmt.Errorf("state: redis prune: %w", err)
	}
	return n, nil
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
