package memory

import (
	"context"
	"sync"

	"github.com/nguyentranbao-ct/storefront/internal/models"
)

// SearchStore holds search results per session id.
type SearchStore struct {
	mu      sync.RWMutex
	results map[string]*models.SearchResults
}

func NewSearchStore() *SearchStore {
	return &SearchStore{results: make(map[string]*models.SearchResults)}
}

func (s *SearchStore) SearchResults(_ context.Context, sessionID string) (*models.SearchResults, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.results[sessionID], nil
}

func (s *SearchStore) SetSearchResults(_ context.Context, sessionID string, results *models.SearchResults) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if results == nil {
		delete(s.results, sessionID)
		return nil
	}
	s.results[sessionID] = results
	return nil
}

func (s *SearchStore) ClearSearchResults(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.results, sessionID)
	return nil
}
