// Package rediscache implements cache.BalanceCache on Redis so several server
// instances share one set of cached balances.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mmynk/settleup/internal/cache"
	"github.com/mmynk/settleup/internal/models"
)

const keyPrefix = "settleup:balance:"

var _ cache.BalanceCache = (*Cache)(nil)

// Cache stores balances as JSON values, one key per pair or group.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New wraps a connected client. A zero ttl keeps entries until overwritten.
func New(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Connect dials addr (host:port or a redis:// URL) and pings it. Callers
// fall back to the in-memory cache when this fails.
func Connect(ctx context.Context, addr string, ttl time.Duration) (*Cache, error) {
	opts := &redis.Options{Addr: addr}
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		opts = parsed
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", opts.Addr, err)
	}
	return New(client, ttl), nil
}

// Close closes the underlying client.
func (c *Cache) Close() error {
	return c.client.Close()
}

func (c *Cache) GetPair(ctx context.Context, a, b string) (models.PairwiseBalance, bool, error) {
	var bal models.PairwiseBalance
	ok, err := c.get(ctx, pairKey(a, b), &bal)
	if err != nil || !ok {
		return models.PairwiseBalance{}, false, err
	}
	return cache.Orient(bal, a), true, nil
}

func (c *Cache) PutPair(ctx context.Context, balance models.PairwiseBalance) error {
	return c.set(ctx, pairKey(balance.UserA, balance.UserB), cache.Canonical(balance))
}

func (c *Cache) GetGroup(ctx context.Context, groupID string) (models.GroupBalance, bool, error) {
	var g models.GroupBalance
	ok, err := c.get(ctx, groupKey(groupID), &g)
	if err != nil || !ok {
		return models.GroupBalance{}, false, err
	}
	return g, true, nil
}

func (c *Cache) PutGroup(ctx context.Context, balance models.GroupBalance) error {
	return c.set(ctx, groupKey(balance.GroupID), balance)
}

func (c *Cache) get(ctx context.Context, key string, dst any) (bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

func (c *Cache) set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func pairKey(a, b string) string {
	return keyPrefix + "pair:" + cache.PairKey(a, b)
}

func groupKey(groupID string) string {
	return keyPrefix + "group:" + groupID
}
