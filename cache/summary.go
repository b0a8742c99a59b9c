package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/warp/sim-inventory/inventory"
)

const (
	summaryKey    = KeyPrefix + "summary"
	summaryGenKey = summaryKey + ":gen"
)

// SummaryCache stores the last computed inventory.Summary as JSON under a
// key tagged with the current generation. Invalidate bumps the generation,
// so a summary written for an older one is never read again.
type SummaryCache struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ inventory.SummaryCache = (*SummaryCache)(nil)

// NewSummaryCache caches summaries for ttl. A zero ttl keeps them until the
// next mutation.
func NewSummaryCache(rdb *redis.Client, ttl time.Duration) *SummaryCache {
	return &SummaryCache{rdb: rdb, ttl: ttl}
}

// SummaryKey is the key holding the summary of generation gen.
func SummaryKey(gen int64) string {
	return fmt.Sprintf("%s:%d", summaryKey, gen)
}

func (c *SummaryCache) Get(ctx context.Context) (*inventory.Summary, int64, bool, error) {
	gen, err := c.rdb.Get(ctx, summaryGenKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, 0, false, err
	}
	raw, err := c.rdb.Get(ctx, SummaryKey(gen)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, gen, false, nil
	}
	if err != nil {
		return nil, 0, false, err
	}
	var sum inventory.Summary
	if err := json.Unmarshal(raw, &sum); err != nil {
		// Unreadable entries are treated as a miss and overwritten.
		return nil, gen, false, nil
	}
	return &sum, gen, true, nil
}

func (c *SummaryCache) Set(ctx context.Context, gen int64, sum inventory.Summary) error {
	payload, err := json.Marshal(sum)
	if err != nil {
		return err
	}
	current, err := c.rdb.Get(ctx, summaryGenKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	if current != gen {
		// Invalidated since gen was read; a stale key would never be read.
		return nil
	}
	return c.rdb.Set(ctx, SummaryKey(gen), payload, c.ttl).Err()
}

func (c *SummaryCache) Invalidate(ctx context.Context) error {
	gen, err := c.rdb.Incr(ctx, summaryGenKey).Result()
	if err != nil {
		return err
	}
	return c.rdb.Del(ctx, SummaryKey(gen-1)).Err()
}
