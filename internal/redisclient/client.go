package redisclient

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// Client caches derived cart counters and checkout idempotency keys. Every
// operation here is advisory: a cache failure never fails the calling
// operation.
type Client struct {
	rdb *redis.Client
}

const cartCountTTL = time.Hour

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func cartCountKey(ownerID int64) string {
	return fmt.Sprintf("cart:count:%d", ownerID)
}

// GetCartCount returns the cached line count and whether the cache was warm.
func (c *Client) GetCartCount(ctx context.Context, ownerID int64) (int, bool) {
	val, err := c.rdb.Get(ctx, cartCountKey(ownerID)).Result()
	if err != nil {
		return 0, false
	}
	count, err := strconv.Atoi(val)
	if err != nil {
		return 0, false
	}
	return count, true
}

// SetCartCount caches the line count for an owner.
func (c *Client) SetCartCount(ctx context.Context, ownerID int64, count int) error {
	return c.rdb.Set(ctx, cartCountKey(ownerID), count, cartCountTTL).Err()
}

// InvalidateCartCount drops the cached count after a cart mutation.
func (c *Client) InvalidateCartCount(ctx context.Context, ownerID int64) error {
	return c.rdb.Del(ctx, cartCountKey(ownerID)).Err()
}

// SetIdempotencyKey stores a checkout idempotency key with TTL.
func (c *Client) SetIdempotencyKey(ctx context.Context, key string, ttl time.Duration) error {
	return c.rdb.Set(ctx, fmt.Sprintf("idempotency:%s", key), "1", ttl).Err()
}

// CheckIdempotencyKey checks if a checkout idempotency key exists.
func (c *Client) CheckIdempotencyKey(ctx context.Context, key string) (bool, error) {
	result, err := c.rdb.Exists(ctx, fmt.Sprintf("idempotency:%s", key)).Result()
	if err != nil {
		return false, err
	}
	return result > 0, nil
}
