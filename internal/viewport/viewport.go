package viewport

import (
	"errors"
	"sync"
)

var (
	ErrInvalidWidth = errors.New("viewport: width must not be negative")
	ErrClosed       = errors.New("viewport: observer closed")
)

// Listener receives the new width after every change.
type Listener func(width int)

// Observer tracks a viewport width and fans changes out to subscribers.
type Observer struct {
	mu        sync.Mutex
	width     int
	nextID    uint64
	listeners map[uint64]Listener
	closed    bool
}

func NewObserver(width int) *Observer {
	if width < 0 {
		width = 0
	}
	return &Observer{
		width:     width,
		listeners: make(map[uint64]Listener),
	}
}

func (o *Observer) Width() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.width
}

// Subscribe registers fn and returns the func that removes it. The returned
// func is safe to call more than once.
func (o *Observer) Subscribe(fn Listener) (func(), error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil, ErrClosed
	}
	id := o.nextID
	o.nextID++
	o.listeners[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			delete(o.listeners, id)
			o.mu.Unlock()
		})
	}, nil
}

// Update stores a new width. Listeners run only when the width changed, and
// outside the observer lock.
func (o *Observer) Update(width int) error {
	if width < 0 {
		return ErrInvalidWidth
	}
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrClosed
	}
	if width == o.width {
		o.mu.Unlock()
		return nil
	}
	o.width = width
	listeners := make([]Listener, 0, len(o.listeners))
	for _, fn := range o.listeners {
		listeners = append(listeners, fn)
	}
	o.mu.Unlock()

	for _, fn := range listeners {
		fn(width)
	}
	return nil
}

// Subscribers returns the number of live subscriptions.
func (o *Observer) Subscribers() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.listeners)
}

// Close drops every subscription. Further updates fail with ErrClosed.
func (o *Observer) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	clear(o.listeners)
}
