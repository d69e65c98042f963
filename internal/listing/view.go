package listing

import (
	"context"
	"errors"

	log "github.com/carousell/ct-go/pkg/logger/log_context"

	"github.com/nguyentranbao-ct/storefront/internal/catalog"
	"github.com/nguyentranbao-ct/storefront/internal/models"
)

const (
	ErrorKindNetwork   = "network"
	ErrorKindMalformed = "malformed_response"
	ErrorKindUnknown   = "unknown"
)

type ViewModel struct {
	SessionID  string                `json:"session_id"`
	Width      int                   `json:"width"`
	ActivePage int                   `json:"active_page"`
	TotalPages int                   `json:"total_pages"`
	PageSize   int                   `json:"page_size"`
	TotalItems int                   `json:"total_items"`
	Products   []models.Product      `json:"products"`
	Pagination Pagination            `json:"pagination"`
	Search     *models.SearchResults `json:"search,omitempty"`
	Loading    bool                  `json:"loading"`
	Error      *LoadError            `json:"error,omitempty"`
}

// Searching reports whether the search view replaces the grid.
func (v ViewModel) Searching() bool { return v.Search != nil }

// Empty reports a successful load of an empty catalog.
func (v ViewModel) Empty() bool {
	return v.Error == nil && !v.Loading && v.TotalItems == 0
}

type Pagination struct {
	ShowPrevious bool       `json:"show_previous"`
	NextDisabled bool       `json:"next_disabled"`
	Pages        []PageLink `json:"pages"`
}

type PageLink struct {
	Number int  `json:"number"`
	Active bool `json:"active"`
}

type LoadError struct {
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// View assembles everything the renderer needs.
func (p *Page) View(ctx context.Context) (ViewModel, error) {
	search, err := p.deps.Search.SearchResults(ctx, p.deps.SessionID)
	if err != nil {
		// a broken search backend must not hide the catalog
		log.Warnw(ctx, "read search state failed", "session_id", p.deps.SessionID, "error", err)
		search = nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.mounted {
		return ViewModel{}, ErrNotMounted
	}

	s := p.pager.Snapshot()
	vm := ViewModel{
		SessionID:  p.deps.SessionID,
		Width:      p.deps.Viewport.Width(),
		ActivePage: s.ActivePage,
		TotalPages: s.TotalPages,
		PageSize:   s.PageSize,
		TotalItems: s.TotalItems,
		Products:   s.Items,
		Pagination: NewPagination(s.ActivePage, s.TotalPages),
		Search:     search,
		Loading:    p.loading,
		Error:      classify(p.loadErr),
	}
	return vm, nil
}

func NewPagination(active, total int) Pagination {
	pages := make([]PageLink, total)
	for i := range pages {
		pages[i] = PageLink{Number: i + 1, Active: i+1 == active}
	}
	return Pagination{
		ShowPrevious: active > 1,
		NextDisabled: active >= total,
		Pages:        pages,
	}
}

func classify(err error) *LoadError {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, catalog.ErrMalformedResponse):
		return &LoadError{
			Kind:      ErrorKindMalformed,
			Message:   "The product catalog returned an unexpected response.",
			Retryable: true,
		}
	case errors.Is(err, catalog.ErrNetwork):
		return &LoadError{
			Kind:      ErrorKindNetwork,
			Message:   "We could not reach the product catalog.",
			Retryable: true,
		}
	default:
		return &LoadError{
			Kind:      ErrorKindUnknown,
			Message:   "Products are unavailable right now.",
			Retryable: true,
		}
	}
}
