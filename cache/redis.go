/*
Package cache holds the Redis-backed helpers shared by every server instance.

	SummaryCache  caches the card summary between mutations
	ImportLock    serializes bulk imports across instances

Both are optional: the server runs without Redis, it just recomputes the
summary on every read and relies on the store lock for imports.
*/
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces every key this package writes.
const KeyPrefix = "sim-inventory:"

// Connect opens a client for addr and pings it once.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 3 * time.Second,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return rdb, nil
}
