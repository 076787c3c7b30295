package db

import (
	"context"
	"fmt"
)

// EnsureVectorIndex creates the cosine ANN index with the configured list
// count (indexing.ivfflat_lists). IF NOT EXISTS leaves an existing index
// untouched; changing the list count needs a drop and re-create, which is
// an operator decision, not a startup one.
func (db *DB) EnsureVectorIndex(ctx context.Context, lists int) error {
	if _, err := db.pool.Exec(ctx, vectorIndexSQL(lists)); err != nil {
		return fmt.Errorf("failed to ensure vector index: %w", err)
	}
	return nil
}

func vectorIndexSQL(lists int) string {
	if lists <= 0 {
		lists = 100
	}
	return fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS rag_documents_embedding_idx
		 ON rag_documents USING ivfflat (embedding vector_cosine_ops) WITH (lists = %d)`,
		lists,
	)
}
