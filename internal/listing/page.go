package listing

import (
	"context"
	"errors"
	"fmt"
	"sync"

	log "github.com/carousell/ct-go/pkg/logger/log_context"

	"github.com/nguyentranbao-ct/storefront/internal/catalog"
	"github.com/nguyentranbao-ct/storefront/internal/models"
	"github.com/nguyentranbao-ct/storefront/internal/paginator"
	"github.com/nguyentranbao-ct/storefront/internal/viewport"
)

var (
	ErrAlreadyMounted = errors.New("listing: page already mounted")
	ErrNotMounted     = errors.New("listing: page not mounted")
	ErrPageOutOfRange = errors.New("listing: page out of range")
)

// CatalogStore receives the full catalog after every successful load.
type CatalogStore interface {
	Publish(ctx context.Context, products []models.Product) error
}

// SearchState tells the page whether search results should replace the grid.
type SearchState interface {
	SearchResults(ctx context.Context, sessionID string) (*models.SearchResults, error)
}

// SearchStore is the write side used by the search feature.
type SearchStore interface {
	SearchState
	SetSearchResults(ctx context.Context, sessionID string, results *models.SearchResults) error
	ClearSearchResults(ctx context.Context, sessionID string) error
}

type Deps struct {
	SessionID string
	Catalog   catalog.Source
	Store     CatalogStore
	Search    SearchState
	Viewport  *viewport.Observer
	Policy    viewport.Policy
}

// Page is one mounted product listing. All methods are safe for concurrent use.
type Page struct {
	deps Deps

	mu          sync.Mutex
	mounted     bool
	unsubscribe func()
	pager       *paginator.Paginator[models.Product]
	generation  uint64
	loading     bool
	loadErr     error
}

func NewPage(deps Deps) (*Page, error) {
	if deps.Catalog == nil || deps.Store == nil || deps.Search == nil || deps.Viewport == nil {
		return nil, errors.New("listing: catalog, store, search and viewport are required")
	}
	if !deps.Policy.Valid() {
		return nil, fmt.Errorf("listing: invalid page size policy %+v", deps.Policy)
	}
	return &Page{deps: deps}, nil
}

func (p *Page) SessionID() string { return p.deps.SessionID }

// Mount subscribes to viewport changes and loads the catalog.
func (p *Page) Mount(ctx context.Context) error {
	p.mu.Lock()
	if p.mounted {
		p.mu.Unlock()
		return ErrAlreadyMounted
	}
	unsubscribe, err := p.deps.Viewport.Subscribe(p.onResize)
	if err != nil {
		p.mu.Unlock()
		return fmt.Errorf("subscribe viewport: %w", err)
	}
	pager, err := paginator.New[models.Product](nil, p.deps.Policy.PageSize(p.deps.Viewport.Width()))
	if err != nil {
		unsubscribe()
		p.mu.Unlock()
		return err
	}
	p.unsubscribe = unsubscribe
	p.pager = pager
	p.mounted = true
	p.loadErr = nil
	p.mu.Unlock()

	return p.load(ctx)
}

// Unmount releases the viewport subscription and discards all state. A
// load still in flight is dropped when it returns.
func (p *Page) Unmount() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.mounted {
		return
	}
	p.unsubscribe()
	p.unsubscribe = nil
	p.pager = nil
	p.mounted = false
	p.loading = false
	p.loadErr = nil
	p.generation++
}

func (p *Page) Mounted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mounted
}

// Resize feeds a new viewport width. The page size is re-derived locally;
// the catalog is not fetched again.
func (p *Page) Resize(width int) error {
	if !p.Mounted() {
		return ErrNotMounted
	}
	return p.deps.Viewport.Update(width)
}

// Invalidator is implemented by catalog sources that cache.
type Invalidator interface {
	Invalidate()
}

// Retry runs the catalog load again, typically after a failure. A caching
// source is invalidated first so the catalog is fetched for real.
func (p *Page) Retry(ctx context.Context) error {
	if !p.Mounted() {
		return ErrNotMounted
	}
	if inv, ok := p.deps.Catalog.(Invalidator); ok {
		inv.Invalidate()
	}
	return p.load(ctx)
}

func (p *Page) Next() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.mounted {
		return false, ErrNotMounted
	}
	return p.pager.Next(), nil
}

func (p *Page) Previous() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.mounted {
		return false, ErrNotMounted
	}
	return p.pager.Previous(), nil
}

// GoTo jumps to page n. Pages outside [1, total] are rejected with
// ErrPageOutOfRange and leave the page untouched.
func (p *Page) GoTo(n int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.mounted {
		return ErrNotMounted
	}
	if !p.pager.GoTo(n) {
		return fmt.Errorf("%w: %d not in [1, %d]", ErrPageOutOfRange, n, p.pager.TotalPages())
	}
	return nil
}

// State returns a copy of the current pagination state.
func (p *Page) State() (paginator.State[models.Product], error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.mounted {
		return paginator.State[models.Product]{}, ErrNotMounted
	}
	return p.pager.Snapshot(), nil
}

func (p *Page) onResize(width int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.mounted {
		return
	}
	// policy is validated in NewPage, sizes are always positive
	_ = p.pager.SetPageSize(p.deps.Policy.PageSize(width))
}

func (p *Page) load(ctx context.Context) error {
	p.mu.Lock()
	p.generation++
	gen := p.generation
	p.loading = true
	p.mu.Unlock()

	products, err := p.deps.Catalog.Products(ctx)

	if !p.apply(gen, products, err) {
		log.Debugw(ctx, "dropped superseded catalog load", "session_id", p.deps.SessionID, "generation", gen)
		return nil
	}
	if err != nil {
		log.Warnw(ctx, "catalog load failed", "session_id", p.deps.SessionID, "error", err)
		return err
	}

	if err := p.deps.Store.Publish(ctx, products); err != nil {
		log.Errorw(ctx, "publish catalog failed", "session_id", p.deps.SessionID, "error", err)
	}
	return nil
}

// apply stores a load result if it belongs to the latest load of a mounted page.
func (p *Page) apply(gen uint64, products []models.Product, err error) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.mounted || gen != p.generation {
		return false
	}
	p.loading = false
	if err != nil {
		p.loadErr = err
		return true
	}
	p.loadErr = nil
	p.pager.SetItems(products)
	return true
}
