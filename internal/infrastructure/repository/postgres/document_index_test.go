package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kirillkom/foia-search/internal/core/domain"
)

func newIndexWithMock(t *testing.T) (*DocumentIndex, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return NewDocumentIndex(db, nil), mock, func() { _ = db.Close() }
}

func TestVectorSearchUsesCosineDistance(t *testing.T) {
	index, mock, done := newIndexWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, embedding <=> \\$1::vector AS distance").
		WithArgs("[0.5,-1,0.25]", 200).
		WillReturnRows(sqlmock.NewRows([]string{"id", "distance"}).
			AddRow("a", 0.1).
			AddRow("b", 0.3))

	hits, err := index.VectorSearch(context.Background(), []float32{0.5, -1, 0.25}, 200)
	if err != nil {
		t.Fatalf("VectorSearch() error = %v", err)
	}
	if len(hits) != 2 || hits[0].DocumentID != "a" || hits[1].Distance != 0.3 {
		t.Fatalf("unexpected hits: %+v", hits)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestLexicalSearchUsesPlainQueryAndRank(t *testing.T) {
	index, mock, done := newIndexWithMock(t)
	defer done()

	mock.ExpectQuery("(?s)ts_rank_cd\\(content_tsv, q\\).*plainto_tsquery\\('english', \\$1\\).*content_tsv @@ q").
		WithArgs("lead service lines", 150).
		WillReturnRows(sqlmock.NewRows([]string{"id", "relevance"}).AddRow("c", 0.8))

	hits, err := index.LexicalSearch(context.Background(), "lead service lines", 150)
	if err != nil {
		t.Fatalf("LexicalSearch() error = %v", err)
	}
	if len(hits) != 1 || hits[0].DocumentID != "c" || hits[0].Relevance != 0.8 {
		t.Fatalf("unexpected hits: %+v", hits)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestLexicalSearchBlankQuerySkipsDatabase(t *testing.T) {
	index, mock, done := newIndexWithMock(t)
	defer done()

	hits, err := index.LexicalSearch(context.Background(), "  ", 10)
	if err != nil || hits != nil {
		t.Fatalf("expected no hits and no error, got %v %v", hits, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetDocumentReturnsDomainNotFound(t *testing.T) {
	index, mock, done := newIndexWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, content, metadata, image_refs").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := index.GetDocument(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetDocumentsDecodesJSONColumns(t *testing.T) {
	index, mock, done := newIndexWithMock(t)
	defer done()

	mock.ExpectQuery("jsonb_array_elements_text").
		WithArgs(`["a","b"]`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "content", "metadata", "image_refs"}).
			AddRow("b", "body b", `{"From":"['x@y.gov']"}`, `["B_1_1.txt"]`).
			AddRow("a", "body a", `{}`, `[]`))

	docs, err := index.GetDocuments(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("GetDocuments() error = %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 docs, got %d", len(docs))
	}
	if docs[0].Metadata[domain.FieldFrom] != "['x@y.gov']" || len(docs[0].ImageRefs) != 1 {
		t.Fatalf("unexpected decoded document: %+v", docs[0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestConnectionFailureIsRetrievalUnavailable(t *testing.T) {
	index, mock, done := newIndexWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, embedding").
		WillReturnError(&pgconn.PgError{Code: "08006", Message: "connection failure"})

	_, err := index.VectorSearch(context.Background(), []float32{1}, 5)
	if !domain.IsKind(err, domain.ErrRetrievalUnavailable) {
		t.Fatalf("expected retrieval unavailable, got %v", err)
	}
}

func TestSyntaxErrorIsNotRetrievalUnavailable(t *testing.T) {
	index, mock, done := newIndexWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, embedding").
		WillReturnError(&pgconn.PgError{Code: "42883", Message: "operator does not exist"})

	_, err := index.VectorSearch(context.Background(), []float32{1}, 5)
	if err == nil || domain.IsKind(err, domain.ErrRetrievalUnavailable) {
		t.Fatalf("expected permanent error, got %v", err)
	}
}

func TestDimensionReadsColumnTypmod(t *testing.T) {
	index, mock, done := newIndexWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT atttypmod").
		WillReturnRows(sqlmock.NewRows([]string{"atttypmod"}).AddRow(768))

	dim, err := index.Dimension(context.Background())
	if err != nil {
		t.Fatalf("Dimension() error = %v", err)
	}
	if dim != 768 {
		t.Fatalf("expected 768, got %d", dim)
	}
}

func TestDimensionFallsBackToStoredRow(t *testing.T) {
	index, mock, done := newIndexWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT atttypmod").
		WillReturnRows(sqlmock.NewRows([]string{"atttypmod"}).AddRow(-1))
	mock.ExpectQuery("SELECT vector_dims").
		WillReturnRows(sqlmock.NewRows([]string{"vector_dims"}).AddRow(384))

	dim, err := index.Dimension(context.Background())
	if err != nil {
		t.Fatalf("Dimension() error = %v", err)
	}
	if dim != 384 {
		t.Fatalf("expected 384, got %d", dim)
	}
}

func TestFormatVector(t *testing.T) {
	if got := formatVector([]float32{1, 0.1, -2.5}); got != "[1,0.1,-2.5]" {
		t.Fatalf("unexpected vector literal: %s", got)
	}
}

func TestAppendSearchEvent(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()
	repo := NewSearchLogRepository(db, nil)

	at := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO search_log").
		WithArgs("e1", "lead", 10, `["a","b"]`, 12, 2, 3.5, at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.AppendSearchEvent(context.Background(), domain.SearchEvent{
		ID: "e1", Query: "lead", Limit: 10, ResultIDs: []string{"a", "b"},
		Candidates: 12, Duplicates: 2, DurationMS: 3.5, OccurredAt: at,
	})
	if err != nil {
		t.Fatalf("AppendSearchEvent() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestAppendSearchEventReturnsExecError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	mock.ExpectExec("INSERT INTO search_log").WillReturnError(errors.New("boom"))
	err = NewSearchLogRepository(db, nil).AppendSearchEvent(context.Background(), domain.SearchEvent{ID: "e1"})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestUpsertDocumentsRunsInTransaction(t *testing.T) {
	index, mock, done := newIndexWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO email_documents").
		WithArgs("a", "body", "[1,0]", `{"Date":"['2015']"}`, "[]").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := index.UpsertDocuments(context.Background(), []domain.Document{{
		ID: "a", Content: "body", Embedding: []float32{1, 0},
		Metadata: map[string]string{domain.FieldDate: "['2015']"},
	}})
	if err != nil {
		t.Fatalf("UpsertDocuments() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
