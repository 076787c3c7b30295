package indexer

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobfinder/assistant/internal/apperr"
	"github.com/jobfinder/assistant/internal/domain"
	"github.com/jobfinder/assistant/internal/embeddings"
)

type fakeSource struct {
	jobs map[int64]*domain.JobRecord
}

func (f *fakeSource) GetJob(_ context.Context, jobID int64) (*domain.JobRecord, error) {
	job, ok := f.jobs[jobID]
	if !ok {
		return nil, apperr.NotFound("job %d", jobID)
	}
	return job, nil
}

func (f *fakeSource) ListJobsUpdatedSince(context.Context, time.Time) ([]int64, error) {
	ids := make([]int64, 0, len(f.jobs))
	for id := range f.jobs {
		ids = append(ids, id)
	}
	return ids, nil
}

type fakeChunker struct {
	docs []domain.ChunkedDocument
}

func (f *fakeChunker) Build(*domain.JobRecord) []domain.ChunkedDocument {
	return f.docs
}

type fakeEmbedder struct {
	mu    sync.Mutex
	calls int
	fail  map[string]error
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if err, bad := f.fail[text]; bad {
		return nil, err
	}
	return []float32{float32(len(text)), 0, 0}, nil
}

func (f *fakeEmbedder) Dimension() int { return 3 }

func (f *fakeEmbedder) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeStore struct {
	mu      sync.Mutex
	docs    map[domain.DocumentKey]domain.RetrievalDocument
	upserts int
	deleted []int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{docs: make(map[domain.DocumentKey]domain.RetrievalDocument)}
}

func (f *fakeStore) ListByJob(_ context.Context, jobID int64) ([]domain.RetrievalDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.RetrievalDocument
	for _, doc := range f.docs {
		if doc.Key.JobID == jobID {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (f *fakeStore) Upsert(_ context.Context, doc *domain.RetrievalDocument) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	f.docs[doc.Key] = *doc
	return nil
}

func (f *fakeStore) DeleteKeys(_ context.Context, keys []domain.DocumentKey) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range keys {
		delete(f.docs, key)
	}
	return nil
}

func (f *fakeStore) DeleteByJob(_ context.Context, jobID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key := range f.docs {
		if key.JobID == jobID {
			delete(f.docs, key)
		}
	}
	f.deleted = append(f.deleted, jobID)
	return nil
}

func (f *fakeStore) Upserts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.upserts
}

type fakeFailed struct {
	added []int64
}

func (f *fakeFailed) Add(_ context.Context, jobID int64) error {
	f.added = append(f.added, jobID)
	return nil
}

type fakeRefs struct {
	nulled []int64
}

func (f *fakeRefs) NullifyMessageJobRefs(_ context.Context, jobID int64) error {
	f.nulled = append(f.nulled, jobID)
	return nil
}

func sectionDoc(jobID int64, idx int, content string) domain.ChunkedDocument {
	return domain.ChunkedDocument{
		Key: domain.DocumentKey{
			JobID:       jobID,
			DocType:     domain.DocTypeJobSection,
			SectionType: domain.SectionDescription,
			ChunkIndex:  idx,
		},
		Content: content,
	}
}

func newTestIndexer(source *fakeSource, ch *fakeChunker, emb *fakeEmbedder, store *fakeStore, refs *fakeRefs) *Indexer {
	return New(source, ch, emb, store, refs, NewLocker(nil, time.Minute), &fakeFailed{}, 0)
}

func TestReindexInsertsAllChunks(t *testing.T) {
	source := &fakeSource{jobs: map[int64]*domain.JobRecord{7: {ID: 7}}}
	ch := &fakeChunker{docs: []domain.ChunkedDocument{
		sectionDoc(7, 0, "chunk zero"),
		sectionDoc(7, 1, "chunk one"),
		sectionDoc(7, 2, "chunk two"),
	}}
	store := newFakeStore()
	ix := newTestIndexer(source, ch, &fakeEmbedder{}, store, &fakeRefs{})

	report, err := ix.Reindex(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Inserted)
	assert.Equal(t, 0, report.Updated)
	assert.Len(t, store.docs, 3)
}

func TestReindexUnchangedContentIsZeroWrite(t *testing.T) {
	source := &fakeSource{jobs: map[int64]*domain.JobRecord{7: {ID: 7}}}
	ch := &fakeChunker{docs: []domain.ChunkedDocument{
		sectionDoc(7, 0, "stable content"),
	}}
	store := newFakeStore()
	emb := &fakeEmbedder{}
	ix := newTestIndexer(source, ch, emb, store, &fakeRefs{})

	_, err := ix.Reindex(context.Background(), 7)
	require.NoError(t, err)
	embedsAfterFirst := emb.Calls()
	upsertsAfterFirst := store.Upserts()

	report, err := ix.Reindex(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Unchanged)
	assert.Zero(t, report.Inserted+report.Updated+report.Deleted+report.Failed)
	assert.Equal(t, embedsAfterFirst, emb.Calls(), "unchanged chunks must not be re-embedded")
	assert.Equal(t, upsertsAfterFirst, store.Upserts(), "unchanged chunks must not be re-written")
}

func TestReindexPrunesStaleChunks(t *testing.T) {
	source := &fakeSource{jobs: map[int64]*domain.JobRecord{7: {ID: 7}}}
	ch := &fakeChunker{docs: []domain.ChunkedDocument{
		sectionDoc(7, 0, "long text a"),
		sectionDoc(7, 1, "long text b"),
		sectionDoc(7, 2, "long text c"),
	}}
	store := newFakeStore()
	ix := newTestIndexer(source, ch, &fakeEmbedder{}, store, &fakeRefs{})

	_, err := ix.Reindex(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, store.docs, 3)

	// The section shrank to a single chunk on re-crawl.
	ch.docs = []domain.ChunkedDocument{sectionDoc(7, 0, "short text")}

	report, err := ix.Reindex(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, 2, report.Deleted)
	assert.Len(t, store.docs, 1)
	_, ok := store.docs[sectionDoc(7, 0, "").Key]
	assert.True(t, ok)
}

func TestReindexEmbedFailureKeepsPreviousVersion(t *testing.T) {
	source := &fakeSource{jobs: map[int64]*domain.JobRecord{7: {ID: 7}}}
	ch := &fakeChunker{docs: []domain.ChunkedDocument{
		sectionDoc(7, 0, "original content"),
		sectionDoc(7, 1, "sibling content"),
	}}
	store := newFakeStore()
	emb := &fakeEmbedder{}
	ix := newTestIndexer(source, ch, emb, store, &fakeRefs{})

	_, err := ix.Reindex(context.Background(), 7)
	require.NoError(t, err)

	// First chunk changes but its embedding now fails; the sibling changes
	// too and must still go through.
	ch.docs = []domain.ChunkedDocument{
		sectionDoc(7, 0, "changed content"),
		sectionDoc(7, 1, "sibling changed"),
	}
	emb.fail = map[string]error{"changed content": apperr.Transient("embedding service down")}

	report, err := ix.Reindex(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Updated)

	kept := store.docs[sectionDoc(7, 0, "").Key]
	assert.Equal(t, "original content", kept.Content, "failed chunk keeps its previous version")
	sibling := store.docs[sectionDoc(7, 1, "").Key]
	assert.Equal(t, "sibling changed", sibling.Content)
}

func TestReindexTransientFailureQueuedForRetry(t *testing.T) {
	source := &fakeSource{jobs: map[int64]*domain.JobRecord{7: {ID: 7}}}
	ch := &fakeChunker{docs: []domain.ChunkedDocument{sectionDoc(7, 0, "content")}}
	emb := &fakeEmbedder{fail: map[string]error{
		"content": apperr.Transient("embedding service down"),
	}}
	failed := &fakeFailed{}
	ix := New(source, ch, emb, newFakeStore(), nil, NewLocker(nil, time.Minute), failed, 0)

	report, err := ix.Reindex(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, []int64{7}, failed.added, "transient failures go to the retry backlog")
}

func TestReindexRejectedChunkNotRequeued(t *testing.T) {
	source := &fakeSource{jobs: map[int64]*domain.JobRecord{7: {ID: 7}}}
	ch := &fakeChunker{docs: []domain.ChunkedDocument{sectionDoc(7, 0, "oversize content")}}
	emb := &fakeEmbedder{fail: map[string]error{
		"oversize content": fmt.Errorf("%w: input exceeds model limit", embeddings.ErrRejected),
	}}
	failed := &fakeFailed{}
	ix := New(source, ch, emb, newFakeStore(), nil, NewLocker(nil, time.Minute), failed, 0)

	report, err := ix.Reindex(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Failed)
	assert.Empty(t, failed.added, "a permanent rejection must not cycle through the sweep")
}

func TestReindexMetadataDriftRefreshesSnapshot(t *testing.T) {
	source := &fakeSource{jobs: map[int64]*domain.JobRecord{7: {ID: 7}}}
	withURL := func(url string) domain.ChunkedDocument {
		doc := sectionDoc(7, 0, "stable content")
		doc.Metadata.URL = url
		return doc
	}
	ch := &fakeChunker{docs: []domain.ChunkedDocument{withURL("https://example.com/old")}}
	store := newFakeStore()
	emb := &fakeEmbedder{}
	ix := newTestIndexer(source, ch, emb, store, &fakeRefs{})

	_, err := ix.Reindex(context.Background(), 7)
	require.NoError(t, err)
	embedsAfterFirst := emb.Calls()

	// The posting URL changed on re-crawl; the chunk text did not.
	ch.docs = []domain.ChunkedDocument{withURL("https://example.com/new")}

	report, err := ix.Reindex(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Updated)
	assert.Zero(t, report.Unchanged)
	assert.Equal(t, embedsAfterFirst, emb.Calls(), "metadata refresh reuses the stored embedding")

	refreshed := store.docs[sectionDoc(7, 0, "").Key]
	assert.Equal(t, "https://example.com/new", refreshed.Metadata.URL)
	assert.NotEmpty(t, refreshed.Embedding, "the previous embedding is carried over")
}

func TestReindexFatalEmbeddingAborts(t *testing.T) {
	source := &fakeSource{jobs: map[int64]*domain.JobRecord{7: {ID: 7}}}
	ch := &fakeChunker{docs: []domain.ChunkedDocument{sectionDoc(7, 0, "content")}}
	emb := &fakeEmbedder{fail: map[string]error{
		"content": apperr.Fatal("dimension mismatch"),
	}}
	ix := newTestIndexer(source, ch, emb, newFakeStore(), &fakeRefs{})

	_, err := ix.Reindex(context.Background(), 7)
	assert.ErrorIs(t, err, apperr.ErrFatal)
}

func TestReindexCoalescesConcurrentRequests(t *testing.T) {
	source := &fakeSource{jobs: map[int64]*domain.JobRecord{7: {ID: 7}}}
	locker := NewLocker(nil, time.Minute)
	ix := New(source, &fakeChunker{}, &fakeEmbedder{}, newFakeStore(), nil, locker, NewFailedSet(nil), 0)

	release, acquired, err := locker.Acquire(context.Background(), 7)
	require.NoError(t, err)
	require.True(t, acquired)
	defer release()

	report, err := ix.Reindex(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, report.Coalesced)

	// A different job is unaffected.
	source.jobs[8] = &domain.JobRecord{ID: 8}
	report, err = ix.Reindex(context.Background(), 8)
	require.NoError(t, err)
	assert.False(t, report.Coalesced)
}

func TestReindexMissingJobCascades(t *testing.T) {
	store := newFakeStore()
	refs := &fakeRefs{}
	require.NoError(t, store.Upsert(context.Background(), &domain.RetrievalDocument{
		Key:     sectionDoc(7, 0, "").Key,
		Content: "orphan",
	}))
	ix := newTestIndexer(&fakeSource{jobs: map[int64]*domain.JobRecord{}}, &fakeChunker{}, &fakeEmbedder{}, store, refs)

	report, err := ix.Reindex(context.Background(), 7)
	require.NoError(t, err)

	assert.Zero(t, report.Inserted)
	assert.Empty(t, store.docs)
	assert.Equal(t, []int64{7}, store.deleted)
	assert.Equal(t, []int64{7}, refs.nulled)
}

func TestDeleteJobNullsMessageRefs(t *testing.T) {
	store := newFakeStore()
	refs := &fakeRefs{}
	ix := newTestIndexer(&fakeSource{}, &fakeChunker{}, &fakeEmbedder{}, store, refs)

	require.NoError(t, ix.DeleteJob(context.Background(), 99))

	assert.Equal(t, []int64{99}, store.deleted)
	assert.Equal(t, []int64{99}, refs.nulled)
}

func TestLockerSerializesPerJob(t *testing.T) {
	locker := NewLocker(nil, time.Minute)

	release, ok, err := locker.Acquire(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = locker.Acquire(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, ok, "second acquire for the same job must be refused")

	_, ok, err = locker.Acquire(context.Background(), 2)
	require.NoError(t, err)
	assert.True(t, ok, "other jobs are independent")

	release()
	_, ok, err = locker.Acquire(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, ok, "released lock can be re-acquired")
}
