package memory

import (
	"context"
	"sync"
	"time"

	"github.com/nguyentranbao-ct/storefront/internal/models"
)

// CatalogStore keeps the latest published catalog in process.
type CatalogStore struct {
	mu       sync.Mutex
	snapshot *models.CatalogSnapshot
	now      func() time.Time
}

func NewCatalogStore() *CatalogStore {
	return &CatalogStore{now: time.Now}
}

func (s *CatalogStore) Publish(_ context.Context, products []models.Product) error {
	snapshot := models.NewCatalogSnapshot(products, s.now())
	s.mu.Lock()
	s.snapshot = &snapshot
	s.mu.Unlock()
	return nil
}
