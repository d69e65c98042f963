package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/nguyentranbao-ct/storefront/internal/models"
)

// SearchStore keeps one JSON document of search results per session.
type SearchStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

type SearchStoreOption func(*SearchStore)

func WithPrefix(prefix string) SearchStoreOption {
	return func(s *SearchStore) { s.prefix = strings.Trim(prefix, ":") }
}

// WithTTL sets the key expiry. Zero keeps results until cleared.
func WithTTL(d time.Duration) SearchStoreOption {
	return func(s *SearchStore) { s.ttl = d }
}

func NewSearchStore(rdb *redis.Client, opts ...SearchStoreOption) *SearchStore {
	s := &SearchStore{
		rdb:    rdb,
		prefix: "storefront:search",
		ttl:    30 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SearchStore) key(sessionID string) string {
	return s.prefix + ":" + sessionID
}

// SearchResults returns nil when the session has no active search.
func (s *SearchStore) SearchResults(ctx context.Context, sessionID string) (*models.SearchResults, error) {
	raw, err := s.rdb.Get(ctx, s.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get search results: %w", err)
	}

	var results models.SearchResults
	if err := json.Unmarshal(raw, &results); err != nil {
		return nil, fmt.Errorf("decode search results: %w", err)
	}
	return &results, nil
}

func (s *SearchStore) SetSearchResults(ctx context.Context, sessionID string, results *models.SearchResults) error {
	if results == nil {
		return s.ClearSearchResults(ctx, sessionID)
	}
	raw, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("encode search results: %w", err)
	}
	if err := s.rdb.Set(ctx, s.key(sessionID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("set search results: %w", err)
	}
	return nil
}

func (s *SearchStore) ClearSearchResults(ctx context.Context, sessionID string) error {
	if err := s.rdb.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("clear search results: %w", err)
	}
	return nil
}
