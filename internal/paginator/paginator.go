package paginator

import "errors"

var ErrInvalidPageSize = errors.New("paginator: page size must be positive")

// State is an immutable view of a paginator at one point in time.
type State[T any] struct {
	ActivePage int
	TotalPages int
	PageSize   int
	TotalItems int
	Items      []T
}

// Paginator slices an ordered collection into fixed-size pages.
// Displayed always equals items[(active-1)*size : active*size], clamped to the
// collection length. It is not safe for concurrent use.
type Paginator[T any] struct {
	items     []T
	pageSize  int
	active    int
	displayed []T
}

func New[T any](items []T, pageSize int) (*Paginator[T], error) {
	if pageSize <= 0 {
		return nil, ErrInvalidPageSize
	}
	p := &Paginator[T]{
		items:    items,
		pageSize: pageSize,
		active:   1,
	}
	p.slice()
	return p, nil
}

// TotalPages returns ceil(len(items)/pageSize), never less than one.
func TotalPages(length, pageSize int) int {
	if pageSize <= 0 || length <= 0 {
		return 1
	}
	return (length + pageSize - 1) / pageSize
}

func (p *Paginator[T]) ActivePage() int { return p.active }
func (p *Paginator[T]) PageSize() int   { return p.pageSize }
func (p *Paginator[T]) Len() int        { return len(p.items) }
func (p *Paginator[T]) Displayed() []T  { return p.displayed }

func (p *Paginator[T]) TotalPages() int {
	return TotalPages(len(p.items), p.pageSize)
}

func (p *Paginator[T]) HasNext() bool     { return p.active < p.TotalPages() }
func (p *Paginator[T]) HasPrevious() bool { return p.active > 1 }

// Next moves one page forward. It reports false at the last page.
func (p *Paginator[T]) Next() bool {
	if !p.HasNext() {
		return false
	}
	p.active++
	p.slice()
	return true
}

// Previous moves one page back. It reports false at the first page.
func (p *Paginator[T]) Previous() bool {
	if !p.HasPrevious() {
		return false
	}
	p.active--
	p.slice()
	return true
}

// GoTo jumps to page n. Out of range pages are rejected and leave the
// paginator untouched.
func (p *Paginator[T]) GoTo(n int) bool {
	if n < 1 || n > p.TotalPages() {
		return false
	}
	p.active = n
	p.slice()
	return true
}

// SetPageSize re-slices the collection. The page holding the first item of
// the previous active page becomes active.
func (p *Paginator[T]) SetPageSize(size int) error {
	if size <= 0 {
		return ErrInvalidPageSize
	}
	if size == p.pageSize {
		return nil
	}
	first := (p.active - 1) * p.pageSize
	p.pageSize = size
	p.active = first/size + 1
	if total := p.TotalPages(); p.active > total {
		p.active = total
	}
	p.slice()
	return nil
}

// SetItems replaces the collection and returns to the first page.
func (p *Paginator[T]) SetItems(items []T) {
	p.items = items
	p.active = 1
	p.slice()
}

func (p *Paginator[T]) Snapshot() State[T] {
	items := make([]T, len(p.displayed))
	copy(items, p.displayed)
	return State[T]{
		ActivePage: p.active,
		TotalPages: p.TotalPages(),
		PageSize:   p.pageSize,
		TotalItems: len(p.items),
		Items:      items,
	}
}

func (p *Paginator[T]) slice() {
	start := (p.active - 1) * p.pageSize
	end := start + p.pageSize
	if start > len(p.items) {
		start = len(p.items)
	}
	if end > len(p.items) {
		end = len(p.items)
	}
	p.displayed = p.items[start:end:end]
}
