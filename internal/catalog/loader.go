package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/carousell/ct-go/pkg/logger/log_context"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"

	"github.com/nguyentranbao-ct/storefront/internal/config"
	"github.com/nguyentranbao-ct/storefront/internal/models"
	"github.com/nguyentranbao-ct/storefront/pkg/util"
)

// Source hands out the full catalog. The returned slice is shared and must
// be treated as read-only.
type Source interface {
	Products(ctx context.Context) ([]models.Product, error)
}

// Loader caches the catalog for a TTL and collapses concurrent fetches into
// one request to the product source.
type Loader struct {
	client  Client
	ttl     time.Duration
	now     func() time.Time
	group   singleflight.Group
	metrics *prometheus.HistogramVec

	mu        sync.RWMutex
	products  []models.Product
	fetchedAt time.Time
}

var _ Source = (*Loader)(nil)

func NewLoader(cfg *config.Config, client Client) (*Loader, error) {
	metrics, err := util.HistogramVec("catalog_fetch_duration_seconds", "Catalog source fetch latency by outcome", "status")
	if err != nil {
		return nil, fmt.Errorf("get histogram vec: %w", err)
	}
	return &Loader{
		client:  client,
		ttl:     cfg.Catalog.CacheTTL,
		now:     time.Now,
		metrics: metrics,
	}, nil
}

func (l *Loader) Products(ctx context.Context) ([]models.Product, error) {
	if products, ok := l.cached(); ok {
		return products, nil
	}

	// the shared fetch must not be canceled by whichever caller came first
	fetchCtx := context.WithoutCancel(ctx)
	ch := l.group.DoChan("catalog", func() (any, error) {
		if products, ok := l.cached(); ok {
			return products, nil
		}
		return l.fetch(fetchCtx)
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrNetwork, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]models.Product), nil
	}
}

// Lookup finds one product in the catalog.
func (l *Loader) Lookup(ctx context.Context, id int) (models.Product, error) {
	products, err := l.Products(ctx)
	if err != nil {
		return models.Product{}, err
	}
	p, ok := models.FindProduct(products, id)
	if !ok {
		return models.Product{}, fmt.Errorf("product %d: %w", id, models.ErrNotFound)
	}
	return p, nil
}

// Invalidate drops the cached catalog so the next call fetches again.
func (l *Loader) Invalidate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.products = nil
	l.fetchedAt = time.Time{}
}

// Prime installs a catalog obtained elsewhere, such as a snapshot from a
// peer instance. It is ignored when the cache already holds a newer one.
func (l *Loader) Prime(products []models.Product, at time.Time) bool {
	if products == nil {
		products = []models.Product{}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.products != nil && !at.After(l.fetchedAt) {
		return false
	}
	l.products = products
	l.fetchedAt = at
	return true
}

func (l *Loader) cached() ([]models.Product, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.products == nil || l.ttl <= 0 {
		return nil, false
	}
	if l.now().Sub(l.fetchedAt) >= l.ttl {
		return nil, false
	}
	return l.products, true
}

func (l *Loader) fetch(ctx context.Context) ([]models.Product, error) {
	start := time.Now()
	products, err := l.client.GetProducts(ctx)
	status := "ok"
	if err != nil {
		status = "error"
	}
	l.metrics.WithLabelValues(status).Observe(time.Since(start).Seconds())

	if err != nil {
		log.Errorw(ctx, "fetch catalog failed", "error", err)
		return nil, err
	}

	l.mu.Lock()
	l.products = products
	l.fetchedAt = l.now()
	l.mu.Unlock()

	log.Infow(ctx, "catalog fetched", "products_count", len(products), "latency_ms", time.Since(start).Milliseconds())
	return products, nil
}
