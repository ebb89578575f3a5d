package balances

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const versionPrefix = "balances:version:"

// Cache stores balance read models in Redis under a per-user version so a
// single increment retires every cached view of that user.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Version returns the user's current cache version, initialising when missing.
func (c *Cache) Version(ctx context.Context, userID string) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	key := versionPrefix + userID
	ver, err := c.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		// SetNX keeps a concurrent Invalidate from being overwritten.
		if err := c.client.SetNX(ctx, key, 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, key).Int64()
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// BuildKey composes a cache key bound to the user's current version.
func (c *Cache) BuildKey(ctx context.Context, userID string, parts ...string) (string, error) {
	joined := strings.Join(append([]string{"balances", userID}, parts...), ":")
	if c == nil || c.client == nil {
		return joined, nil
	}
	ver, err := c.Version(ctx, userID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%d", joined, ver), nil
}

// FetchJSON loads a cached value or populates it using the loader.
func (c *Cache) FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) (bool, error) {
	if loader == nil {
		return false, errors.New("cache: loader required")
	}
	if c == nil || c.client == nil {
		return false, load(ctx, dest, loader, nil)
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		return true, json.Unmarshal(payload, dest)
	}
	if !errors.Is(err, redis.Nil) {
		return false, err
	}
	return false, load(ctx, dest, loader, func(raw []byte) error {
		return c.client.Set(ctx, key, raw, c.ttl).Err()
	})
}

func load(ctx context.Context, dest any, loader func(context.Context) (any, error), store func([]byte) error) error {
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if store != nil {
		if err := store(raw); err != nil {
			return err
		}
	}
	return json.Unmarshal(raw, dest)
}

// Invalidate bumps the user's version, orphaning every cached entry.
func (c *Cache) Invalidate(ctx context.Context, userID string) error {
	if c == nil || c.client == nil || userID == "" {
		return nil
	}
	return c.client.Incr(ctx, versionPrefix+userID).Err()
}
