package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"NewsSum/internal/config"
	"NewsSum/internal/ports"
)

const (
	keyPrefix  = "newssum:seen:"
	defaultTTL = 72 * time.Hour
)

// SeenKeys is a Redis-backed ports.SeenKeyCache. Entries expire after ttl so
// the database stays the source of truth.
type SeenKeys struct {
	client *redis.Client
	ttl    time.Duration
}

var _ ports.SeenKeyCache = (*SeenKeys)(nil)

// NewSeenKeys connects to Redis and verifies the connection.
func NewSeenKeys(ctx context.Context, cfg config.RedisConfig) (*SeenKeys, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	return NewSeenKeysWithClient(client, cfg.SeenTTL), nil
}

// NewSeenKeysWithClient wraps an existing client.
func NewSeenKeysWithClient(client *redis.Client, ttl time.Duration) *SeenKeys {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &SeenKeys{client: client, ttl: ttl}
}

// Seen reports which of keys were remembered and have not expired.
func (s *SeenKeys) Seen(ctx context.Context, keys []string) (map[string]bool, error) {
	seen := make(map[string]bool, len(keys))
	if len(keys) == 0 {
		return seen, nil
	}

	redisKeys := make([]string, len(keys))
	for i, k := range keys {
		redisKeys[i] = keyPrefix + k
	}

	values, err := s.client.MGet(ctx, redisKeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget seen keys: %w", err)
	}
	for i, v := range values {
		if v != nil {
			seen[keys[i]] = true
		}
	}
	return seen, nil
}

// Remember marks keys as persisted.
func (s *SeenKeys) Remember(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	pipe := s.client.Pipeline()
	for _, k := range keys {
		pipe.Set(ctx, keyPrefix+k, 1, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("remember seen keys: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *SeenKeys) Close() error {
	return s.client.Close()
}
