// Package metadata provides document metadata lookup for result enrichment.
package metadata

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/justinsudev/wikisearch/pkg/postgres"
)

// DocMeta is the display metadata attached to a ranked hit. Fields default to
// empty strings when the document has no metadata row.
type DocMeta struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Summary string `json:"summary"`
}

// Store resolves document IDs to display metadata.
type Store interface {
	GetDoc(ctx context.Context, docID int) (DocMeta, error)
}

// PostgresStore reads document metadata from PostgreSQL.
//
// It requires a `documents` table:
//
//	CREATE TABLE documents (
//	    docid   BIGINT PRIMARY KEY,
//	    title   TEXT NOT NULL DEFAULT '',
//	    url     TEXT NOT NULL DEFAULT '',
//	    summary TEXT NOT NULL DEFAULT ''
//	);
type PostgresStore struct {
	db     *postgres.Client
	logger *slog.Logger
}

// NewPostgresStore creates a metadata store backed by db.
func NewPostgresStore(db *postgres.Client) *PostgresStore {
	return &PostgresStore{
		db:     db,
		logger: slog.Default().With("component", "metadata-store"),
	}
}

// GetDoc returns the metadata for docID. A document the engine ranked but the
// metadata table does not know still produces a result, so a missing row
// returns zero-valued metadata rather than an error.
func (s *PostgresStore) GetDoc(ctx context.Context, docID int) (DocMeta, error) {
	var meta DocMeta
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT title, url, summary FROM documents WHERE docid = $1`,
		docID,
	).Scan(&meta.Title, &meta.URL, &meta.Summary)

	if err == sql.ErrNoRows {
		return DocMeta{}, nil
	}
	if err != nil {
		return DocMeta{}, fmt.Errorf("querying document %d: %w", docID, err)
	}
	return meta, nil
}
