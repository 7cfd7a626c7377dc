package extractions

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPGRepoInsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	data := ExtractedData{
		ID:         "ext-1",
		DocumentID: "doc-1",
		Content:    map[string]any{"name": "Bob", "source_id": nil},
		Markdown:   "# Doc",
		CSV:        "name\nBob",
		CreatedAt:  time.Now().UTC(),
	}

	mock.ExpectExec("INSERT INTO extracted_data").
		WithArgs(
			data.ID,
			data.DocumentID,
			sqlmock.AnyArg(), // content json
			data.Markdown,
			data.CSV,
			data.CreatedAt,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Insert(context.Background(), data); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoLatestByDocument(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	created := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "document_id", "content", "markdown", "csv", "created_at"}).
		AddRow("ext-1", "doc-1", []byte(`{"name":"Bob"}`), "# Doc", "name\nBob", created)

	mock.ExpectQuery("SELECT id, document_id, content").
		WithArgs("doc-1").
		WillReturnRows(rows)

	data, err := repo.LatestByDocument(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("LatestByDocument: %v", err)
	}
	if data.Content["name"] != "Bob" {
		t.Fatalf("content = %#v", data.Content)
	}
	if data.CSV != "name\nBob" {
		t.Fatalf("csv = %q", data.CSV)
	}
}

func TestPGRepoLatestByDocumentNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	mock.ExpectQuery("SELECT id, document_id, content").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	if _, err := repo.LatestByDocument(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
