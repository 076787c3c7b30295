package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Embedder computes a fixed-dimension vector for a text. Implementations
// report transient outages and permanent rejections through the apperr
// sentinels so callers can decide whether to retry.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// Chunker turns a job record into its ordered retrieval documents.
type Chunker interface {
	Build(job *JobRecord) []ChunkedDocument
}

// JobSource is the read side of the crawler-owned corpus.
type JobSource interface {
	GetJob(ctx context.Context, jobID int64) (*JobRecord, error)
	ListJobsUpdatedSince(ctx context.Context, since time.Time) ([]int64, error)
}

// DocumentStore persists retrieval documents. Upsert is atomic per row and
// bumps updated_at only when content, metadata, or embedding changed.
type DocumentStore interface {
	ListByJob(ctx context.Context, jobID int64) ([]RetrievalDocument, error)
	Upsert(ctx context.Context, doc *RetrievalDocument) error
	DeleteKeys(ctx context.Context, keys []DocumentKey) error
	DeleteByJob(ctx context.Context, jobID int64) error
}

// VectorCandidate is a raw ANN hit before hybrid blending.
type VectorCandidate struct {
	Document   RetrievalDocument
	Similarity float64
}

// SearchIndex is the retriever's view of the document store.
type SearchIndex interface {
	// SearchVector returns up to limit candidates ordered by cosine
	// similarity, restricted to documents whose parent job still exists.
	SearchVector(ctx context.Context, embedding []float32, limit int, onlyActive bool) ([]VectorCandidate, error)
	// SearchLexical returns up to limit documents whose content contains
	// any of the given terms, restricted the same way.
	SearchLexical(ctx context.Context, terms []string, limit int, onlyActive bool) ([]RetrievalDocument, error)
}

// SessionStore persists chat sessions and their append-only messages.
type SessionStore interface {
	CreateSession(ctx context.Context, userID *int64, metadata map[string]string) (*ChatSession, error)
	GetSessionByToken(ctx context.Context, token string) (*ChatSession, error)
	TouchSession(ctx context.Context, sessionID uuid.UUID) error
	CloseSession(ctx context.Context, sessionID uuid.UUID) error
	AppendMessage(ctx context.Context, msg *ChatMessage) error
	ListMessages(ctx context.Context, sessionID uuid.UUID) ([]ChatMessage, error)
}

// Generator produces the assistant answer from a fully assembled prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
