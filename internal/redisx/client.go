package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	r := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	return r
}

// Locker hands out short-lived SETNX locks. A lock that is never released
// expires after its TTL.
type Locker struct {
	Redis redis.Cmdable
}

func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.Redis.SetNX(ctx, key, "1", ttl).Result()
}

func (l *Locker) Release(ctx context.Context, key string) error {
	return l.Redis.Del(ctx, key).Err()
}

// Dedup remembers processed event ids for TTLDedup.
type Dedup struct {
	Redis   redis.Cmdable
	Service string
}

// Mark records id and reports true when it was not seen before.
func (d *Dedup) Mark(ctx context.Context, id string) (bool, error) {
	return d.Redis.SetNX(ctx, d.key(id), "1", TTLDedup).Result()
}

// Seen reports whether id was recorded, without recording it.
func (d *Dedup) Seen(ctx context.Context, id string) (bool, error) {
	n, err := d.Redis.Exists(ctx, d.key(id)).Result()
	return n > 0, err
}

// Remember records id unconditionally. Used when the event is marked only
// after it was applied.
func (d *Dedup) Remember(ctx context.Context, id string) error {
	return d.Redis.Set(ctx, d.key(id), "1", TTLDedup).Err()
}

// Forget drops id so a retried delivery is processed again.
func (d *Dedup) Forget(ctx context.Context, id string) error {
	return d.Redis.Del(ctx, d.key(id)).Err()
}

func (d *Dedup) key(id string) string {
	return fmt.Sprintf(KeyDedup, d.Service, id)
}

// StatusCache keeps a JSON snapshot per order for GET requests.
type StatusCache struct {
	Redis redis.Cmdable
}

func (c *StatusCache) Get(ctx context.Context, orderID string) ([]byte, bool) {
	b, err := c.Redis.Get(ctx, fmt.Sprintf(KeyOrderStatus, orderID)).Bytes()
	if err != nil || len(b) == 0 {
		return nil, false
	}
	return b, true
}

func (c *StatusCache) Set(ctx context.Context, orderID string, snapshot []byte) error {
	return c.Redis.Set(ctx, fmt.Sprintf(KeyOrderStatus, orderID), snapshot, TTLStatusCache).Err()
}

func (c *StatusCache) Invalidate(ctx context.Context, orderID string) error {
	return c.Redis.Del(ctx, fmt.Sprintf(KeyOrderStatus, orderID)).Err()
}
