package cache

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/warp/sim-inventory/inventory"
	"github.com/warp/sim-inventory/inventory/importer"
)

const importLockKey = KeyPrefix + "import-lock"

// ImportLock is a distributed mutex around bulk imports.
type ImportLock struct {
	locker *redislock.Client
	ttl    time.Duration
}

var _ importer.Locker = (*ImportLock)(nil)

// NewImportLock returns a lock that expires after ttl if never released.
func NewImportLock(rdb *redis.Client, ttl time.Duration) *ImportLock {
	return &ImportLock{locker: redislock.New(rdb), ttl: ttl}
}

// Obtain fails fast with a Conflict when another import holds the lock.
func (l *ImportLock) Obtain(ctx context.Context) (func(context.Context) error, error) {
	lock, err := l.locker.Obtain(ctx, importLockKey, l.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, inventory.ConflictError("Import", "another import is in progress")
	}
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context) error {
		err := lock.Release(ctx)
		if errors.Is(err, redislock.ErrLockNotHeld) {
			// Expired mid-import; nothing left to release.
			return nil
		}
		return err
	}, nil
}
