package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/ew73/slack-karma/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

// DefaultKey is the Redis key holding the karma document.
const DefaultKey = "karma"

var _ domain.DocumentStore = (*DocumentStore)(nil)

// DocumentStore keeps the whole karma document as a JSON string under one key.
type DocumentStore struct {
	rdb goredis.Cmdable
	key string
}

func NewDocumentStore(rdb goredis.Cmdable, key string) *DocumentStore {
	if key == "" {
		key = DefaultKey
	}
	return &DocumentStore{rdb: rdb, key: key}
}

func (s *DocumentStore) Load(ctx context.Context) (domain.Document, error) {
	data, err := s.rdb.Get(ctx, s.key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return domain.Document{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get karma document %q: %w", s.key, err)
	}

	doc, err := domain.DecodeDocument(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode karma document %q: %w", s.key, err)
	}
	return doc, nil
}

func (s *DocumentStore) Save(ctx context.Context, doc domain.Document) error {
	data, err := doc.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode karma document: %w", err)
	}

	if err := s.rdb.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set karma document %q: %w", s.key, err)
	}
	return nil
}

// Ping is used as the readiness check for the redis backend.
func (s *DocumentStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
