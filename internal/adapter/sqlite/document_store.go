package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ew73/slack-karma/internal/domain"
)

// DefaultDocument names the row holding the karma document.
const DefaultDocument = "default"

var _ domain.DocumentStore = (*DocumentStore)(nil)

// DocumentStore keeps the karma document as one JSON text row keyed by name.
type DocumentStore struct {
	db   *sql.DB
	name string
}

func NewDocumentStore(db *sql.DB, name string) *DocumentStore {
	if name == "" {
		name = DefaultDocument
	}
	return &DocumentStore{db: db, name: name}
}

func (s *DocumentStore) Load(ctx context.Context) (domain.Document, error) {
	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM karma_documents WHERE name = ?`, s.name,
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Document{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load karma document %q: %w", s.name, err)
	}

	doc, err := domain.DecodeDocument([]byte(body))
	if err != nil {
		return nil, fmt.Errorf("failed to decode karma document %q: %w", s.name, err)
	}
	return doc, nil
}

func (s *DocumentStore) Save(ctx context.Context, doc domain.Document) error {
	body, err := doc.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode karma document: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO karma_documents (name, body, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (name) DO UPDATE
		SET body = excluded.body, updated_at = excluded.updated_at`,
		s.name, string(body),
	)
	if err != nil {
		return fmt.Errorf("failed to save karma document %q: %w", s.name, err)
	}
	return nil
}

// Ping is used as the readiness check for the sqlite backend.
func (s *DocumentStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
