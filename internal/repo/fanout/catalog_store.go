package fanout

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/nguyentranbao-ct/storefront/internal/listing"
	"github.com/nguyentranbao-ct/storefront/internal/models"
)

// Named pairs a store with the driver name used in error messages.
type Named struct {
	Name  string
	Store listing.CatalogStore
}

// CatalogStore publishes to every store concurrently. One failing store does
// not stop the others; all failures are joined in the returned error.
type CatalogStore struct {
	stores []Named
}

var _ listing.CatalogStore = (*CatalogStore)(nil)

func NewCatalogStore(stores ...Named) *CatalogStore {
	return &CatalogStore{stores: stores}
}

func (s *CatalogStore) Publish(ctx context.Context, products []models.Product) error {
	errs := make([]error, len(s.stores))
	var g errgroup.Group
	for i, st := range s.stores {
		g.Go(func() error {
			if err := st.Store.Publish(ctx, products); err != nil {
				errs[i] = fmt.Errorf("%s: %w", st.Name, err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}
