package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/ew73/slack-karma/internal/domain"
)

var _ domain.DocumentStore = (*Store)(nil)

// Store keeps the karma document in process memory. It stores the encoded
// form so callers never share a map with the store.
type Store struct {
	mu   sync.RWMutex
	data []byte
}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) Load(_ context.Context) (domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, err := domain.DecodeDocument(s.data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode in-memory document: %w", err)
	}
	return doc, nil
}

func (s *Store) Save(_ context.Context, doc domain.Document) error {
	data, err := doc.Encode()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = data
	return nil
}

// Ping always succeeds; it exists so the memory store fits the same health checks.
func (s *Store) Ping(_ context.Context) error {
	return nil
}
