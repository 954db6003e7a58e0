package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// Dedup of gateway callback deliveries: cb:dedup:{checkout_request_id}:{result_code}
	KeyCallbackDedup = "cb:dedup:%s:%d"
)

var TTLDedup = 48 * time.Hour

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr})
}

// Dedup is a SETNX-based duplicate marker over one redis client.
type Dedup struct{ rdb *redis.Client }

func NewDedup(rdb *redis.Client) *Dedup { return &Dedup{rdb: rdb} }

// SetNX returns true when the key was newly set, false when it already existed.
func (d *Dedup) SetNX(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return d.rdb.SetNX(ctx, key, "1", ttl).Result()
}

func (d *Dedup) Del(ctx context.Context, key string) error {
	return d.rdb.Del(ctx, key).Err()
}

func CallbackDedupKey(checkoutRequestID string, resultCode int) string {
	return fmt.Sprintf(KeyCallbackDedup, checkoutRequestID, resultCode)
}
