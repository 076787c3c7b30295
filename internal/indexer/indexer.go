// Package indexer keeps the retrieval documents consistent with the job
// corpus: set-reconciliation upserts on reindex, stale chunk pruning, and
// the explicit cascade when a job is deleted.
package indexer

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/jobfinder/assistant/internal/apperr"
	"github.com/jobfinder/assistant/internal/domain"
	"github.com/jobfinder/assistant/internal/embeddings"
)

// Report summarizes one reindex run.
type Report struct {
	JobID     int64
	Inserted  int
	Updated   int
	Unchanged int
	Deleted   int
	Failed    int
	Coalesced bool
}

// MessageRefs nulls weak chat message references to a deleted job.
type MessageRefs interface {
	NullifyMessageJobRefs(ctx context.Context, jobID int64) error
}

// FailedRecorder records jobs whose chunks need another sweep attempt.
// *FailedSet implements it.
type FailedRecorder interface {
	Add(ctx context.Context, jobID int64) error
}

// Indexer reconciles retrieval documents against the corpus.
type Indexer struct {
	source     domain.JobSource
	chunker    domain.Chunker
	embedder   domain.Embedder
	store      domain.DocumentStore
	refs       MessageRefs
	locker     *Locker
	failed     FailedRecorder
	maxRetries int
}

// New constructs an Indexer. refs may be nil when no chat log exists.
func New(
	source domain.JobSource,
	chunker domain.Chunker,
	embedder domain.Embedder,
	store domain.DocumentStore,
	refs MessageRefs,
	locker *Locker,
	failed FailedRecorder,
	maxRetries int,
) *Indexer {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Indexer{
		source:     source,
		chunker:    chunker,
		embedder:   embedder,
		store:      store,
		refs:       refs,
		locker:     locker,
		failed:     failed,
		maxRetries: maxRetries,
	}
}

// Reindex rebuilds the document set for one job. Matching keys are updated
// only when content or the metadata snapshot changed (metadata-only drift
// reuses the stored embedding), stale keys are pruned, and an embedding
// failure for one chunk leaves its previous version intact while siblings
// proceed. At most one reindex per job runs at a time; a concurrent request
// is coalesced into a no-op report.
func (ix *Indexer) Reindex(ctx context.Context, jobID int64) (*Report, error) {
	report := &Report{JobID: jobID}

	release, acquired, err := ix.locker.Acquire(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !acquired {
		report.Coalesced = true
		log.Printf("[indexer] Job %d reindex already in flight — coalesced", jobID)
		return report, nil
	}
	defer release()

	job, err := ix.source.GetJob(ctx, jobID)
	if errors.Is(err, apperr.ErrNotFound) {
		// Job vanished from the corpus: cascade instead of indexing.
		if err := ix.DeleteJob(ctx, jobID); err != nil {
			return nil, err
		}
		return report, nil
	}
	if err != nil {
		return nil, err
	}

	existing, err := ix.store.ListByJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	existingByKey := make(map[domain.DocumentKey]*domain.RetrievalDocument, len(existing))
	for i := range existing {
		existingByKey[existing[i].Key] = &existing[i]
	}

	desired := ix.chunker.Build(job)
	desiredKeys := make(map[domain.DocumentKey]struct{}, len(desired))

	for _, doc := range desired {
		if err := ctx.Err(); err != nil {
			// Cancellation mid-run: already-upserted rows are complete
			// documents and stale keys are still pruned next run.
			return report, err
		}
		desiredKeys[doc.Key] = struct{}{}

		prev, exists := existingByKey[doc.Key]
		if exists && prev.Content == doc.Content {
			if prev.Metadata.Equal(&doc.Metadata) {
				report.Unchanged++
				continue
			}
			// The snapshot drifted while the text stayed the same: refresh
			// it reusing the stored embedding, no model call needed.
			if err := ix.store.Upsert(ctx, &domain.RetrievalDocument{
				Key:       doc.Key,
				Content:   doc.Content,
				Metadata:  doc.Metadata,
				Embedding: prev.Embedding,
			}); err != nil {
				if errors.Is(err, apperr.ErrConflict) {
					return report, err
				}
				report.Failed++
				log.Printf("[indexer] Job %d chunk %v snapshot refresh failed: %v", jobID, doc.Key, err)
				if ferr := ix.failed.Add(ctx, jobID); ferr != nil {
					log.Printf("[indexer] Job %d: %v", jobID, ferr)
				}
				continue
			}
			report.Updated++
			continue
		}

		vec, err := ix.embed(ctx, doc.Content)
		if err != nil {
			if errors.Is(err, apperr.ErrFatal) || errors.Is(err, apperr.ErrConflict) {
				return report, err
			}
			report.Failed++
			log.Printf("[indexer] Job %d chunk %v embedding failed: %v", jobID, doc.Key, err)
			if errors.Is(err, embeddings.ErrRejected) {
				// Permanent refusal (text over the model limit): retrying
				// next sweep cannot succeed, so keep it out of the backlog.
				continue
			}
			if ferr := ix.failed.Add(ctx, jobID); ferr != nil {
				log.Printf("[indexer] Job %d: %v", jobID, ferr)
			}
			continue
		}

		if err := ix.store.Upsert(ctx, &domain.RetrievalDocument{
			Key:       doc.Key,
			Content:   doc.Content,
			Metadata:  doc.Metadata,
			Embedding: vec,
		}); err != nil {
			if errors.Is(err, apperr.ErrConflict) {
				return report, err
			}
			report.Failed++
			log.Printf("[indexer] Job %d chunk %v upsert failed: %v", jobID, doc.Key, err)
			if ferr := ix.failed.Add(ctx, jobID); ferr != nil {
				log.Printf("[indexer] Job %d: %v", jobID, ferr)
			}
			continue
		}
		if exists {
			report.Updated++
		} else {
			report.Inserted++
		}
	}

	// Prune keys that no longer exist in the chunk set (sections removed or
	// shrunk on re-crawl).
	var stale []domain.DocumentKey
	for key := range existingByKey {
		if _, keep := desiredKeys[key]; !keep {
			stale = append(stale, key)
		}
	}
	if len(stale) > 0 {
		if err := ix.store.DeleteKeys(ctx, stale); err != nil {
			return report, err
		}
		report.Deleted = len(stale)
	}

	log.Printf("[indexer] Job %d reindexed — inserted=%d updated=%d unchanged=%d deleted=%d failed=%d",
		jobID, report.Inserted, report.Updated, report.Unchanged, report.Deleted, report.Failed)
	return report, nil
}

// DeleteJob removes every retrieval document of a job and clears weak
// message references. This is the explicit replacement for a DB-level
// cascade, so deletion stays visible and testable.
func (ix *Indexer) DeleteJob(ctx context.Context, jobID int64) error {
	if err := ix.store.DeleteByJob(ctx, jobID); err != nil {
		return err
	}
	if ix.refs != nil {
		if err := ix.refs.NullifyMessageJobRefs(ctx, jobID); err != nil {
			return err
		}
	}
	log.Printf("[indexer] Job %d documents removed (cascade)", jobID)
	return nil
}

// embed calls the embedding service with bounded exponential backoff on
// transient failures. Rejections and fatal errors pass through untouched.
func (ix *Indexer) embed(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	backoff := retry.WithMaxRetries(uint64(ix.maxRetries), retry.NewExponential(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		v, err := ix.embedder.Embed(ctx, text)
		if err != nil {
			if errors.Is(err, apperr.ErrTransient) {
				return retry.RetryableError(err)
			}
			// Rejections and fatal misconfigurations are not retryable.
			return err
		}
		vec = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vec, nil
}
