// Package retriever serves hybrid nearest-neighbor queries over the
// retrieval documents: cosine vector similarity first, an exact-term
// lexical boost second, metadata filters on top.
package retriever

import (
	"context"
	"errors"
	"log"
	"sort"
	"time"

	"github.com/jobfinder/assistant/internal/apperr"
	"github.com/jobfinder/assistant/internal/domain"
)

const maxTopK = 20

// Query is one retrieval request.
type Query struct {
	Text         string
	Filters      domain.Filters
	CurrentJobID *int64
	TopK         int
}

// Result carries the ranked documents. Degraded is set when the vector
// search was unavailable and the result fell back to lexical-only (or
// nothing).
type Result struct {
	Documents []domain.SearchResult
	Degraded  bool
}

// Options are the tuning parameters; see config for defaults.
type Options struct {
	TopK            int
	LexicalWeight   float64
	CurrentJobBoost float64
	Timeout         time.Duration
}

// Retriever blends vector, lexical, and metadata signals into a
// deterministic ranking.
type Retriever struct {
	index    domain.SearchIndex
	embedder domain.Embedder
	opts     Options
}

// New creates a Retriever.
func New(index domain.SearchIndex, embedder domain.Embedder, opts Options) *Retriever {
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Retriever{index: index, embedder: embedder, opts: opts}
}

// Retrieve returns at most TopK documents, ordered by blended score then
// updated_at (newest first) then job id, so identical inputs against an
// unchanged index produce an identical list. A timed-out or failing vector
// search degrades to lexical-only rather than failing the caller's turn;
// a dimension mismatch is a fatal configuration error and fails loudly.
func (r *Retriever) Retrieve(ctx context.Context, q *Query) (*Result, error) {
	if q.Text == "" {
		return &Result{}, nil
	}
	topK := q.TopK
	if topK <= 0 {
		topK = r.opts.TopK
	}
	if topK > maxTopK {
		topK = maxTopK
	}

	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	// The candidate pool is larger than topK so filtering still leaves
	// enough to rank.
	candidateK := 4 * topK
	if candidateK < 30 {
		candidateK = 30
	}

	terms := extractTerms(q.Text)

	candidates, err := r.vectorCandidates(ctx, q, candidateK)
	if err != nil {
		if errors.Is(err, apperr.ErrFatal) {
			return nil, err
		}
		log.Printf("[retriever] Vector search degraded: %v", err)
		return r.lexicalOnly(ctx, q, terms, topK)
	}

	lexical, err := r.index.SearchLexical(ctx, terms, candidateK, q.Filters.OnlyActive)
	if err != nil {
		// Lexical is a boost, not a dependency.
		log.Printf("[retriever] Lexical pass skipped: %v", err)
		lexical = nil
	}

	merged := r.blend(q, terms, candidates, lexical)
	ranked := r.rank(merged, &q.Filters, topK)
	return &Result{Documents: ranked}, nil
}

func (r *Retriever) vectorCandidates(ctx context.Context, q *Query, limit int) ([]domain.VectorCandidate, error) {
	vec, err := r.embedder.Embed(ctx, q.Text)
	if err != nil {
		return nil, err
	}
	if dim := r.embedder.Dimension(); dim > 0 && len(vec) != dim {
		return nil, apperr.Fatal("query embedding dimension %d does not match configured %d", len(vec), dim)
	}
	return r.index.SearchVector(ctx, vec, limit, q.Filters.OnlyActive)
}

// blend merges the vector pool with the lexical pool. Vector similarity is
// the primary signal; a lexical hit adds at most LexicalWeight, so a
// pure-lexical match can never outrank a much higher vector score.
func (r *Retriever) blend(q *Query, terms []string, candidates []domain.VectorCandidate, lexical []domain.RetrievalDocument) []domain.SearchResult {
	byKey := make(map[domain.DocumentKey]*domain.SearchResult, len(candidates)+len(lexical))
	var order []domain.DocumentKey

	add := func(doc domain.RetrievalDocument, base float64) {
		if _, dup := byKey[doc.Key]; dup {
			return
		}
		byKey[doc.Key] = &domain.SearchResult{Document: doc, Score: base}
		order = append(order, doc.Key)
	}

	for _, c := range candidates {
		add(c.Document, c.Similarity)
	}
	for _, doc := range lexical {
		add(doc, 0)
	}

	results := make([]domain.SearchResult, 0, len(order))
	for _, key := range order {
		res := byKey[key]
		res.Score += r.opts.LexicalWeight * termCoverage(res.Document.Content, terms)
		if q.CurrentJobID != nil && res.Document.Key.JobID == *q.CurrentJobID {
			res.Score += r.opts.CurrentJobBoost
		}
		results = append(results, *res)
	}
	return results
}

// rank filters, sorts deterministically, and truncates to topK. An empty
// filtered set falls back to the unfiltered pool so an over-tight filter
// degrades ranking quality instead of yielding nothing.
func (r *Retriever) rank(results []domain.SearchResult, filters *domain.Filters, topK int) []domain.SearchResult {
	filtered := make([]domain.SearchResult, 0, len(results))
	for _, res := range results {
		if passesFilters(&res.Document, filters) {
			filtered = append(filtered, res)
		}
	}
	if len(filtered) == 0 {
		filtered = results
	}

	sortResults(filtered)
	if len(filtered) > topK {
		filtered = filtered[:topK]
	}
	return filtered
}

func (r *Retriever) lexicalOnly(ctx context.Context, q *Query, terms []string, topK int) (*Result, error) {
	docs, err := r.index.SearchLexical(ctx, terms, 4*topK, q.Filters.OnlyActive)
	if err != nil {
		// Whole index unreachable: the chat turn proceeds without context.
		log.Printf("[retriever] Lexical fallback failed: %v", err)
		return &Result{Degraded: true}, nil
	}
	results := make([]domain.SearchResult, 0, len(docs))
	for _, doc := range docs {
		results = append(results, domain.SearchResult{
			Document: doc,
			Score:    r.opts.LexicalWeight * termCoverage(doc.Content, terms),
		})
	}
	return &Result{Documents: r.rank(results, &q.Filters, topK), Degraded: true}, nil
}

// sortResults orders by score desc, updated_at desc, job_id asc, then the
// remaining key fields, making the order total.
func sortResults(results []domain.SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := &results[i], &results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.Document.UpdatedAt.Equal(b.Document.UpdatedAt) {
			return a.Document.UpdatedAt.After(b.Document.UpdatedAt)
		}
		ak, bk := a.Document.Key, b.Document.Key
		if ak.JobID != bk.JobID {
			return ak.JobID < bk.JobID
		}
		if ak.DocType != bk.DocType {
			return ak.DocType < bk.DocType
		}
		if ak.SectionType != bk.SectionType {
			return ak.SectionType < bk.SectionType
		}
		return ak.ChunkIndex < bk.ChunkIndex
	})
}
