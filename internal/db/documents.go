package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"

	"github.com/jobfinder/assistant/internal/apperr"
	"github.com/jobfinder/assistant/internal/domain"
)

// Unique violation on the composite chunk key means the upsert logic is
// broken; surfaced as a conflict, never retried.
const pgUniqueViolation = "23505"

const documentColumns = `
	d.job_id, d.doc_type, d.section_type, d.chunk_index, d.content,
	d.title, d.company_name, d.locations, d.salary_text, d.salary_min, d.salary_max,
	d.seniority, d.work_type, d.deadline, d.url, d.extra,
	d.embedding, d.created_at, d.updated_at`

// ListByJob returns all retrieval documents for a job, ordered by composite
// key.
func (db *DB) ListByJob(ctx context.Context, jobID int64) ([]domain.RetrievalDocument, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+documentColumns+`
		 FROM rag_documents d
		 WHERE d.job_id = $1
		 ORDER BY d.doc_type, d.section_type, d.chunk_index`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents for job %d: %w", jobID, err)
	}
	defer rows.Close()
	return scanDocuments(rows)
}

// Upsert writes one retrieval document atomically. updated_at is bumped
// only when the content, metadata snapshot, or embedding actually changed,
// so re-indexing an unchanged job is a zero-write operation.
func (db *DB) Upsert(ctx context.Context, doc *domain.RetrievalDocument) error {
	extra, err := marshalExtra(doc.Metadata.Extra)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata extra: %w", err)
	}
	vec := pgvector.NewVector(doc.Embedding)

	_, err = db.pool.Exec(ctx,
		`INSERT INTO rag_documents (
		     job_id, doc_type, section_type, chunk_index, content,
		     title, company_name, locations, salary_text, salary_min, salary_max,
		     seniority, work_type, deadline, url, extra, embedding
		 )
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		 ON CONFLICT (job_id, doc_type, section_type, chunk_index) DO UPDATE
		 SET content      = EXCLUDED.content,
		     title        = EXCLUDED.title,
		     company_name = EXCLUDED.company_name,
		     locations    = EXCLUDED.locations,
		     salary_text  = EXCLUDED.salary_text,
		     salary_min   = EXCLUDED.salary_min,
		     salary_max   = EXCLUDED.salary_max,
		     seniority    = EXCLUDED.seniority,
		     work_type    = EXCLUDED.work_type,
		     deadline     = EXCLUDED.deadline,
		     url          = EXCLUDED.url,
		     extra        = EXCLUDED.extra,
		     embedding    = EXCLUDED.embedding,
		     updated_at   = NOW()
		 WHERE (rag_documents.content, rag_documents.title, rag_documents.company_name,
		        rag_documents.locations, rag_documents.salary_text, rag_documents.salary_min,
		        rag_documents.salary_max, rag_documents.seniority, rag_documents.work_type,
		        rag_documents.deadline, rag_documents.url, rag_documents.extra,
		        rag_documents.embedding)
		       IS DISTINCT FROM
		       (EXCLUDED.content, EXCLUDED.title, EXCLUDED.company_name,
		        EXCLUDED.locations, EXCLUDED.salary_text, EXCLUDED.salary_min,
		        EXCLUDED.salary_max, EXCLUDED.seniority, EXCLUDED.work_type,
		        EXCLUDED.deadline, EXCLUDED.url, EXCLUDED.extra,
		        EXCLUDED.embedding)`,
		doc.Key.JobID, string(doc.Key.DocType), doc.Key.SectionType, doc.Key.ChunkIndex, doc.Content,
		doc.Metadata.Title, doc.Metadata.CompanyName, doc.Metadata.Locations, doc.Metadata.SalaryText,
		doc.Metadata.SalaryMin, doc.Metadata.SalaryMax, doc.Metadata.Seniority,
		doc.Metadata.WorkType, doc.Metadata.Deadline, doc.Metadata.URL, extra, vec,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return apperr.Conflict("duplicate chunk key %v: %v", doc.Key, err)
		}
		return fmt.Errorf("failed to upsert document %v: %w", doc.Key, err)
	}
	return nil
}

// DeleteKeys removes the given chunk keys in one batch. Used to prune stale
// chunks when a section shrinks.
func (db *DB) DeleteKeys(ctx context.Context, keys []domain.DocumentKey) error {
	if len(keys) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, key := range keys {
		batch.Queue(
			`DELETE FROM rag_documents
			 WHERE job_id = $1 AND doc_type = $2 AND section_type = $3 AND chunk_index = $4`,
			key.JobID, string(key.DocType), key.SectionType, key.ChunkIndex,
		)
	}
	br := db.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range keys {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to delete document %v: %w", keys[i], err)
		}
	}
	return nil
}

// DeleteByJob removes every retrieval document of a job (the explicit
// cascade for job deletion).
func (db *DB) DeleteByJob(ctx context.Context, jobID int64) error {
	_, err := db.pool.Exec(ctx, `DELETE FROM rag_documents WHERE job_id = $1`, jobID)
	if err != nil {
		return fmt.Errorf("failed to delete documents for job %d: %w", jobID, err)
	}
	return nil
}

// SearchVector runs the cosine ANN query over the document embeddings,
// restricted to documents whose parent job still exists. The secondary sort
// keys make the order fully deterministic for equal distances.
func (db *DB) SearchVector(ctx context.Context, embedding []float32, limit int, onlyActive bool) ([]domain.VectorCandidate, error) {
	vec := pgvector.NewVector(embedding)
	rows, err := db.pool.Query(ctx,
		`SELECT `+documentColumns+`, 1 - (d.embedding <=> $1) AS similarity
		 FROM rag_documents d
		 JOIN jobs j ON j.id = d.job_id
		 WHERE d.embedding IS NOT NULL
		   AND ($2 = FALSE OR d.deadline IS NULL OR d.deadline >= NOW())
		 ORDER BY d.embedding <=> $1,
		          d.updated_at DESC, d.job_id, d.doc_type, d.section_type, d.chunk_index
		 LIMIT $3`,
		vec, onlyActive, limit,
	)
	if err != nil {
		return nil, apperr.Transient("vector search failed: %v", err)
	}
	defer rows.Close()

	var candidates []domain.VectorCandidate
	for rows.Next() {
		sd, dest := documentScanDest()
		var similarity float64
		dest = append(dest, &similarity)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan vector candidate: %w", err)
		}
		if err := finishDocument(sd); err != nil {
			return nil, err
		}
		candidates = append(candidates, domain.VectorCandidate{Document: *sd.doc, Similarity: similarity})
	}
	return candidates, rows.Err()
}

// SearchLexical returns documents whose content contains any of the given
// terms, for exact-term matching the embedding may under-weight.
func (db *DB) SearchLexical(ctx context.Context, terms []string, limit int, onlyActive bool) ([]domain.RetrievalDocument, error) {
	if len(terms) == 0 {
		return nil, nil
	}
	patterns := make([]string, 0, len(terms))
	for _, term := range terms {
		patterns = append(patterns, "%"+term+"%")
	}
	rows, err := db.pool.Query(ctx,
		`SELECT `+documentColumns+`
		 FROM rag_documents d
		 JOIN jobs j ON j.id = d.job_id
		 WHERE d.content ILIKE ANY($1::text[])
		   AND ($2 = FALSE OR d.deadline IS NULL OR d.deadline >= NOW())
		 ORDER BY d.updated_at DESC, d.job_id, d.doc_type, d.section_type, d.chunk_index
		 LIMIT $3`,
		patterns, onlyActive, limit,
	)
	if err != nil {
		return nil, apperr.Transient("lexical search failed: %v", err)
	}
	defer rows.Close()
	return scanDocuments(rows)
}

// scannedDocument carries the raw column destinations for one row.
type scannedDocument struct {
	doc      *domain.RetrievalDocument
	docType  string
	extraRaw []byte
	vec      pgvector.Vector
}

func documentScanDest() (*scannedDocument, []any) {
	sd := &scannedDocument{doc: &domain.RetrievalDocument{}}
	d := sd.doc
	dest := []any{
		&d.Key.JobID, &sd.docType, &d.Key.SectionType, &d.Key.ChunkIndex, &d.Content,
		&d.Metadata.Title, &d.Metadata.CompanyName, &d.Metadata.Locations, &d.Metadata.SalaryText,
		&d.Metadata.SalaryMin, &d.Metadata.SalaryMax, &d.Metadata.Seniority,
		&d.Metadata.WorkType, &d.Metadata.Deadline, &d.Metadata.URL, &sd.extraRaw,
		&sd.vec, &d.CreatedAt, &d.UpdatedAt,
	}
	return sd, dest
}

func finishDocument(sd *scannedDocument) error {
	sd.doc.Key.DocType = domain.DocType(sd.docType)
	if len(sd.extraRaw) > 0 {
		if err := json.Unmarshal(sd.extraRaw, &sd.doc.Metadata.Extra); err != nil {
			return fmt.Errorf("failed to decode metadata extra: %w", err)
		}
	}
	sd.doc.Embedding = sd.vec.Slice()
	return nil
}

func scanDocuments(rows pgx.Rows) ([]domain.RetrievalDocument, error) {
	var docs []domain.RetrievalDocument
	for rows.Next() {
		sd, dest := documentScanDest()
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		if err := finishDocument(sd); err != nil {
			return nil, err
		}
		docs = append(docs, *sd.doc)
	}
	return docs, rows.Err()
}

func marshalExtra(extra map[string]string) ([]byte, error) {
	if len(extra) == 0 {
		return nil, nil
	}
	return json.Marshal(extra)
}
