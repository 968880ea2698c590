package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kirillkom/foia-search/internal/core/domain"
	"github.com/kirillkom/foia-search/internal/infrastructure/resilience"
)

// DocumentIndex is the hybrid index: pgvector cosine distance for the vector
// leg and a generated tsvector column ranked with ts_rank_cd for the lexical leg.
type DocumentIndex struct {
	db       *sql.DB
	executor *resilience.Executor
}

// NewDocumentIndex wraps db. executor may be nil.
func NewDocumentIndex(db *sql.DB, executor *resilience.Executor) *DocumentIndex {
	return &DocumentIndex{db: db, executor: executor}
}

func (r *DocumentIndex) Mode() domain.IndexMode {
	return domain.IndexModeHybridFused
}

// Dimension reads the declared width of the embedding column, falling back to
// the width of a stored row when the column is unconstrained.
func (r *DocumentIndex) Dimension(ctx context.Context) (int, error) {
	var dim int
	err := r.execute(ctx, "postgres.dimension", func(callCtx context.Context) error {
		row := r.db.QueryRowContext(callCtx, `
SELECT atttypmod
FROM pg_attribute
WHERE attrelid = 'email_documents'::regclass AND attname = 'embedding'
`)
		if err := row.Scan(&dim); err != nil {
			return err
		}
		if dim > 0 {
			return nil
		}
		row = r.db.QueryRowContext(callCtx, `SELECT vector_dims(embedding) FROM email_documents LIMIT 1`)
		return row.Scan(&dim)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, domain.WrapError(domain.ErrConfiguration, "postgres dimension", errors.New("embedding column has no declared dimension and the table is empty"))
		}
		return 0, wrapUnavailable("postgres dimension", fmt.Errorf("read embedding dimension: %w", err))
	}
	return dim, nil
}

func (r *DocumentIndex) VectorSearch(ctx context.Context, vector []float32, limit int) ([]domain.VectorHit, error) {
	if len(vector) == 0 || limit <= 0 {
		return nil, nil
	}

	var hits []domain.VectorHit
	err := r.execute(ctx, "postgres.vector_search", func(callCtx context.Context) error {
		rows, err := r.db.QueryContext(callCtx, `
SELECT id, embedding <=> $1::vector AS distance
FROM email_documents
ORDER BY distance ASC, id ASC
LIMIT $2
`, formatVector(vector), limit)
		if err != nil {
			return err
		}
		defer rows.Close()

		hits = make([]domain.VectorHit, 0, limit)
		for rows.Next() {
			var hit domain.VectorHit
			if err := rows.Scan(&hit.DocumentID, &hit.Distance); err != nil {
				return fmt.Errorf("scan vector hit: %w", err)
			}
			hits = append(hits, hit)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, wrapUnavailable("postgres vector search", fmt.Errorf("vector search: %w", err))
	}
	return hits, nil
}

// LexicalSearch returns only documents matching the query terms, so rows with
// zero overlap never appear.
func (r *DocumentIndex) LexicalSearch(ctx context.Context, query string, limit int) ([]domain.LexicalHit, error) {
	if strings.TrimSpace(query) == "" || limit <= 0 {
		return nil, nil
	}

	var hits []domain.LexicalHit
	err := r.execute(ctx, "postgres.lexical_search", func(callCtx context.Context) error {
		rows, err := r.db.QueryContext(callCtx, `
SELECT id, ts_rank_cd(content_tsv, q) AS relevance
FROM email_documents, plainto_tsquery('english', $1) AS q
WHERE content_tsv @@ q
ORDER BY relevance DESC, id ASC
LIMIT $2
`, query, limit)
		if err != nil {
			return err
		}
		defer rows.Close()

		hits = make([]domain.LexicalHit, 0, limit)
		for rows.Next() {
			var hit domain.LexicalHit
			if err := rows.Scan(&hit.DocumentID, &hit.Relevance); err != nil {
				return fmt.Errorf("scan lexical hit: %w", err)
			}
			hits = append(hits, hit)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, wrapUnavailable("postgres lexical search", fmt.Errorf("lexical search: %w", err))
	}
	return hits, nil
}

func (r *DocumentIndex) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	var doc domain.Document
	err := r.execute(ctx, "postgres.get_document", func(callCtx context.Context) error {
		row := r.db.QueryRowContext(callCtx, `
SELECT id, content, metadata, image_refs
FROM email_documents
WHERE id = $1
`, id)
		return scanDocument(row, &doc)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id=%s", id))
		}
		return nil, wrapUnavailable("postgres get document", fmt.Errorf("get document: %w", err))
	}
	return &doc, nil
}

func (r *DocumentIndex) GetDocuments(ctx context.Context, ids []string) ([]domain.Document, error) {
	if len(ids) == 0 {
		return []domain.Document{}, nil
	}
	idsJSON, err := json.Marshal(ids)
	if err != nil {
		return nil, fmt.Errorf("marshal ids: %w", err)
	}

	var docs []domain.Document
	err = r.execute(ctx, "postgres.get_documents", func(callCtx context.Context) error {
		rows, err := r.db.QueryContext(callCtx, `
SELECT id, content, metadata, image_refs
FROM email_documents
WHERE id IN (SELECT jsonb_array_elements_text($1::jsonb))
`, string(idsJSON))
		if err != nil {
			return err
		}
		defer rows.Close()

		docs = make([]domain.Document, 0, len(ids))
		for rows.Next() {
			var doc domain.Document
			if err := scanDocument(rows, &doc); err != nil {
				return err
			}
			docs = append(docs, doc)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, wrapUnavailable("postgres get documents", fmt.Errorf("get documents: %w", err))
	}
	return docs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner, doc *domain.Document) error {
	var metadataRaw, imageRefsRaw []byte
	if err := row.Scan(&doc.ID, &doc.Content, &metadataRaw, &imageRefsRaw); err != nil {
		return err
	}
	doc.Metadata = map[string]string{}
	if len(metadataRaw) > 0 {
		if err := json.Unmarshal(metadataRaw, &doc.Metadata); err != nil {
			return fmt.Errorf("unmarshal metadata for %s: %w", doc.ID, err)
		}
	}
	if len(imageRefsRaw) > 0 {
		if err := json.Unmarshal(imageRefsRaw, &doc.ImageRefs); err != nil {
			return fmt.Errorf("unmarshal image refs for %s: %w", doc.ID, err)
		}
	}
	return nil
}

func (r *DocumentIndex) execute(ctx context.Context, operation string, fn func(context.Context) error) error {
	if r.executor == nil {
		return fn(ctx)
	}
	return r.executor.Execute(ctx, operation, fn, classifyPostgresError)
}

// formatVector renders the pgvector text form, e.g. [0.1,0.2].
func formatVector(v []float32) string {
	var b strings.Builder
	b.Grow(len(v) * 10)
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

// UpsertDocuments loads prepared documents with their embeddings.
func (r *DocumentIndex) UpsertDocuments(ctx context.Context, docs []domain.Document) error {
	if len(docs) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, doc := range docs {
		metadata, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata for %s: %w", doc.ID, err)
		}
		imageRefs, err := json.Marshal(doc.ImageRefs)
		if err != nil {
			return fmt.Errorf("marshal image refs for %s: %w", doc.ID, err)
		}
		if doc.ImageRefs == nil {
			imageRefs = []byte("[]")
		}
		_, err = tx.ExecContext(ctx, `
INSERT INTO email_documents (id, content, embedding, metadata, image_refs)
VALUES ($1, $2, $3::vector, $4::jsonb, $5::jsonb)
ON CONFLICT (id) DO UPDATE
SET content = EXCLUDED.content,
	embedding = EXCLUDED.embedding,
	metadata = EXCLUDED.metadata,
	image_refs = EXCLUDED.image_refs
`, doc.ID, doc.Content, formatVector(doc.Embedding), string(metadata), string(imageRefs))
		if err != nil {
			return wrapUnavailable("postgres upsert document", fmt.Errorf("upsert document %s: %w", doc.ID, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert tx: %w", err)
	}
	return nil
}
