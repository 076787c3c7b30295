package indexer

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const failedSetKey = "reindex:failed_jobs"

// FailedSet records jobs with chunks that exhausted their embedding retries,
// so the next sweep picks them up again. A Redis set keeps it shared across
// instances.
type FailedSet struct {
	rdb *redis.Client
}

// NewFailedSet creates a FailedSet. rdb may be nil (tests); all operations
// become no-ops then.
func NewFailedSet(rdb *redis.Client) *FailedSet {
	return &FailedSet{rdb: rdb}
}

// Add marks a job as needing a retry sweep.
func (f *FailedSet) Add(ctx context.Context, jobID int64) error {
	if f.rdb == nil {
		return nil
	}
	if err := f.rdb.SAdd(ctx, failedSetKey, jobID).Err(); err != nil {
		return fmt.Errorf("failed to record failed job %d: %w", jobID, err)
	}
	return nil
}

// Drain removes and returns all recorded job ids.
func (f *FailedSet) Drain(ctx context.Context) ([]int64, error) {
	if f.rdb == nil {
		return nil, nil
	}
	members, err := f.rdb.SMembers(ctx, failedSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read failed job set: %w", err)
	}
	if len(members) == 0 {
		return nil, nil
	}
	if err := f.rdb.Del(ctx, failedSetKey).Err(); err != nil {
		return nil, fmt.Errorf("failed to clear failed job set: %w", err)
	}

	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}
