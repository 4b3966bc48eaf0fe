package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ew73/slack-karma/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultDocument names the row holding the karma document.
const DefaultDocument = "default"

var _ domain.DocumentStore = (*DocumentStore)(nil)

// DocumentStore keeps the karma document as one JSONB row keyed by name.
type DocumentStore struct {
	pool *pgxpool.Pool
	name string
}

func NewDocumentStore(pool *pgxpool.Pool, name string) *DocumentStore {
	if name == "" {
		name = DefaultDocument
	}
	return &DocumentStore{pool: pool, name: name}
}

func (s *DocumentStore) Load(ctx context.Context) (domain.Document, error) {
	var body []byte
	err := s.pool.QueryRow(ctx,
		`SELECT body::text FROM karma_documents WHERE name = $1`, s.name,
	).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Document{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load karma document %q: %w", s.name, err)
	}

	doc, err := domain.DecodeDocument(body)
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

	_, err = s.pool.Exec(ctx, `
		INSERT INTO karma_documents (name, body, updated_at)
		VALUES ($1, $2::jsonb, now())
		ON CONFLICT (name) DO UPDATE
		SET body = EXCLUDED.body, updated_at = EXCLUDED.updated_at`,
		s.name, string(body),
	)
	if err != nil {
		return fmt.Errorf("failed to save karma document %q: %w", s.name, err)
	}
	return nil
}

// Ping is used as the readiness check for the postgres backend.
func (s *DocumentStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
