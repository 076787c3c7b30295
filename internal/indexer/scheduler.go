package indexer

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler wraps robfig/cron and drives the incremental re-index sweep:
// jobs updated since the last tick plus jobs with previously failed chunks.
type Scheduler struct {
	cron    *cron.Cron
	indexer *Indexer
	failed  *FailedSet
	workers int
	spec    string

	mu   sync.Mutex
	last time.Time
}

// NewScheduler creates a Scheduler firing every interval. The first sweep
// uses the zero time as its watermark, so a fresh deployment indexes the
// whole corpus.
func NewScheduler(indexer *Indexer, failed *FailedSet, interval time.Duration, workers int) *Scheduler {
	if workers <= 0 {
		workers = 4
	}
	return &Scheduler{
		cron:    cron.New(cron.WithLogger(cron.DefaultLogger)),
		indexer: indexer,
		failed:  failed,
		workers: workers,
		spec:    fmt.Sprintf("@every %s", interval),
	}
}

// Start registers the sweep and starts the scheduler. Also runs one sweep
// immediately so the index is populated without waiting for the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.runSweep(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	log.Printf("[scheduler] Cron started — spec: %s", s.spec)

	go s.runSweep(ctx)
	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Println("[scheduler] Cron stopped")
}

// runSweep reindexes all jobs changed since the previous sweep plus the
// failed-chunk backlog, with bounded parallelism across jobs.
func (s *Scheduler) runSweep(ctx context.Context) {
	s.mu.Lock()
	since := s.last
	s.last = time.Now()
	s.mu.Unlock()

	log.Printf("[scheduler] Sweep started — since %s", since.Format(time.RFC3339))

	ids, err := s.indexer.source.ListJobsUpdatedSince(ctx, since)
	if err != nil {
		log.Printf("[scheduler] ListJobsUpdatedSince error: %v", err)
		return
	}

	retryIDs, err := s.failed.Drain(ctx)
	if err != nil {
		log.Printf("[scheduler] Failed-set drain error: %v", err)
	}

	seen := make(map[int64]struct{}, len(ids)+len(retryIDs))
	queue := make([]int64, 0, len(ids)+len(retryIDs))
	for _, id := range append(ids, retryIDs...) {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		queue = append(queue, id)
	}

	if len(queue) == 0 {
		log.Println("[scheduler] Nothing to index")
		return
	}

	// Per-job serialization lives in the Locker; across jobs the sweep is
	// parallel up to the worker bound.
	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup
	for _, jobID := range queue {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(id int64) {
			defer wg.Done()
			defer func() { <-sem }()
			if _, err := s.indexer.Reindex(ctx, id); err != nil {
				log.Printf("[scheduler] Reindex error for job %d: %v", id, err)
			}
		}(jobID)
	}
	wg.Wait()

	log.Printf("[scheduler] Sweep complete — %d job(s)", len(queue))
}
