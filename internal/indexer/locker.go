package indexer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const lockKeyPrefix = "reindex:lock:"

// Locker serializes re-indexing per job id: a keyed in-process mutex backed
// by a Redis SETNX lock so replicas coalesce too. Acquire is non-blocking —
// a second request for the same job observes the in-flight one and skips.
type Locker struct {
	rdb *redis.Client
	ttl time.Duration

	mu   sync.Mutex
	held map[int64]struct{}
}

// NewLocker creates a Locker. rdb may be nil, in which case only the
// in-process lock applies (single-instance deployments and tests).
func NewLocker(rdb *redis.Client, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Locker{
		rdb:  rdb,
		ttl:  ttl,
		held: make(map[int64]struct{}),
	}
}

// Acquire takes the per-job lock. It returns a release func and true, or
// (nil, false) when another reindex of the same job is already in flight.
func (l *Locker) Acquire(ctx context.Context, jobID int64) (func(), bool, error) {
	l.mu.Lock()
	if _, inFlight := l.held[jobID]; inFlight {
		l.mu.Unlock()
		return nil, false, nil
	}
	l.held[jobID] = struct{}{}
	l.mu.Unlock()

	releaseLocal := func() {
		l.mu.Lock()
		delete(l.held, jobID)
		l.mu.Unlock()
	}

	if l.rdb == nil {
		return releaseLocal, true, nil
	}

	key := fmt.Sprintf("%s%d", lockKeyPrefix, jobID)
	ok, err := l.rdb.SetNX(ctx, key, "1", l.ttl).Result()
	if err != nil {
		releaseLocal()
		return nil, false, fmt.Errorf("redis lock for job %d: %w", jobID, err)
	}
	if !ok {
		releaseLocal()
		return nil, false, nil
	}

	release := func() {
		// Best effort: the TTL reclaims the lock if this fails.
		_ = l.rdb.Del(context.Background(), key).Err()
		releaseLocal()
	}
	return release, true, nil
}
