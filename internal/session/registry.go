package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/carousell/ct-go/pkg/logger/log_context"
	"github.com/google/uuid"

	"github.com/nguyentranbao-ct/storefront/internal/catalog"
	"github.com/nguyentranbao-ct/storefront/internal/config"
	"github.com/nguyentranbao-ct/storefront/internal/listing"
	"github.com/nguyentranbao-ct/storefront/internal/viewport"
)

var ErrClosed = errors.New("session: registry closed")

// Session is one browser's mounted listing page.
type Session struct {
	ID       string
	Page     *listing.Page
	Viewport *viewport.Observer
}

type entry struct {
	session  *Session
	lastSeen time.Time
}

// Registry owns every live session and unmounts the idle ones.
type Registry struct {
	catalog catalog.Source
	store   listing.CatalogStore
	search  listing.SearchState
	policy  viewport.Policy

	idleTTL      time.Duration
	cleanupEvery time.Duration
	now          func() time.Time
	newID        func() string

	onRelease []func(id string)

	mu      sync.Mutex
	entries map[string]*entry
	closed  bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

type Option func(*Registry)

// WithReleaseHook runs fn with the session id after a session is deleted,
// expired or closed. Hooks run outside the registry lock.
func WithReleaseHook(fn func(id string)) Option {
	return func(r *Registry) {
		r.onRelease = append(r.onRelease, fn)
	}
}

func NewRegistry(
	cfg *config.Config,
	source catalog.Source,
	store listing.CatalogStore,
	search listing.SearchState,
	opts ...Option,
) (*Registry, error) {
	policy := viewport.Policy{
		Breakpoint: cfg.Listing.Breakpoint,
		WideSize:   cfg.Listing.WideSize,
		NarrowSize: cfg.Listing.NarrowSize,
	}
	if !policy.Valid() {
		return nil, fmt.Errorf("invalid listing page sizes %+v", policy)
	}
	r := &Registry{
		catalog:      source,
		store:        store,
		search:       search,
		policy:       policy,
		idleTTL:      cfg.Session.IdleTTL,
		cleanupEvery: cfg.Session.CleanupEvery,
		now:          time.Now,
		newID:        uuid.NewString,
		entries:      make(map[string]*entry),
		stop:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Get returns a live session and marks it as seen.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ent, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	ent.lastSeen = r.now()
	return ent.session, true
}

// Create mounts a new page for a fresh session id. A failed catalog load
// still yields a session: the page shows the error and offers a retry.
func (r *Registry) Create(ctx context.Context, width int) (*Session, error) {
	if r.isClosed() {
		return nil, ErrClosed
	}

	obs := viewport.NewObserver(width)
	id := r.newID()
	page, err := listing.NewPage(listing.Deps{
		SessionID: id,
		Catalog:   r.catalog,
		Store:     r.store,
		Search:    r.search,
		Viewport:  obs,
		Policy:    r.policy,
	})
	if err != nil {
		obs.Close()
		return nil, err
	}
	if err := page.Mount(ctx); err != nil {
		if !page.Mounted() {
			obs.Close()
			return nil, fmt.Errorf("mount page: %w", err)
		}
		log.Warnw(ctx, "session mounted with load error", "session_id", id, "error", err)
	}

	sess := &Session{ID: id, Page: page, Viewport: obs}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.release(sess)
		return nil, ErrClosed
	}
	r.entries[id] = &entry{session: sess, lastSeen: r.now()}
	r.mu.Unlock()

	log.Infow(ctx, "session created", "session_id", id, "width", width)
	return sess, nil
}

// GetOrCreate resolves id, creating a new session when id is unknown or
// expired. created reports whether a new session was made.
func (r *Registry) GetOrCreate(ctx context.Context, id string, width int) (sess *Session, created bool, err error) {
	if id != "" {
		if sess, ok := r.Get(id); ok {
			return sess, false, nil
		}
	}
	sess, err = r.Create(ctx, width)
	if err != nil {
		return nil, false, err
	}
	return sess, true, nil
}

// Delete unmounts and forgets a session.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	ent, ok := r.entries[id]
	delete(r.entries, id)
	r.mu.Unlock()
	if ok {
		r.release(ent.session)
	}
	return ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Cleanup unmounts sessions idle for longer than the idle TTL.
func (r *Registry) Cleanup() int {
	cutoff := r.now().Add(-r.idleTTL)

	r.mu.Lock()
	var expired []*Session
	for id, ent := range r.entries {
		if ent.lastSeen.Before(cutoff) {
			expired = append(expired, ent.session)
			delete(r.entries, id)
		}
	}
	r.mu.Unlock()

	for _, sess := range expired {
		r.release(sess)
	}
	return len(expired)
}

// Start runs the janitor until Close.
func (r *Registry) Start(ctx context.Context) {
	if r.cleanupEvery <= 0 || r.idleTTL <= 0 {
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		t := time.NewTicker(r.cleanupEvery)
		defer t.Stop()
		for {
			select {
			case <-r.stop:
				return
			case <-t.C:
				if n := r.Cleanup(); n > 0 {
					log.Infow(ctx, "expired idle sessions", "count", n)
				}
			}
		}
	}()
}

// Close stops the janitor and unmounts every session.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.stop)
	entries := r.entries
	r.entries = make(map[string]*entry)
	r.mu.Unlock()

	r.wg.Wait()
	for _, ent := range entries {
		r.release(ent.session)
	}
}

func (r *Registry) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *Registry) release(sess *Session) {
	sess.Page.Unmount()
	sess.Viewport.Close()
	for _, fn := range r.onRelease {
		fn(sess.ID)
	}
}
