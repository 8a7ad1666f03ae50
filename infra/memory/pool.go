package memory

import (
	"errors"
	"sync"
)

var (
	// ErrNoFactory is returned by Acquire when the idle queue is empty
	// and the pool has no way to manufacture a resource.
	ErrNoFactory = errors.New("memory: pool has no factory")
	// ErrPoolClosed is returned by Acquire after Close.
	ErrPoolClosed = errors.New("memory: pool is closed")
)

// Pool is a typed recycling pool. The zero value is unusable; construct
// with New or NewWithFactory.
//
// The Pool struct is only a head: all state, including the liveness
// flag observed by outstanding handles, lives behind a shared pointer.
// Copying or moving the head therefore preserves the pool's identity.
type Pool[R any] struct {
	state *poolState[R]
}

type poolState[R any] struct {
	mu        sync.Mutex
	idle      []*R // FIFO, head at idle[0]
	factory   func() *R
	finalizer func(*R)
	closed    bool
}

// Option configures a pool at construction time.
type Option[R any] func(*poolState[R])

// WithFinalizer installs a destructor invoked exactly once for each
// resource the pool destroys (on Drain, on Close, or when a handle is
// released after the pool closed).
func WithFinalizer[R any](fn func(*R)) Option[R] {
	return func(s *poolState[R]) { s.finalizer = fn }
}

// New creates a pool whose resources are zero-valued R instances.
func New[R any](opts ...Option[R]) *Pool[R] {
	return NewWithFactory(func() *R { return new(R) }, opts...)
}

// NewWithFactory creates a pool that manufactures resources with the
// given factory when the idle queue is empty.
func NewWithFactory[R any](factory func() *R, opts ...Option[R]) *Pool[R] {
	s := &poolState[R]{factory: factory}
	for _, opt := range opts {
		opt(s)
	}
	return &Pool[R]{state: s}
}

// Acquire detaches the head of the idle queue, or manufactures a fresh
// resource if none is idle. The returned handle owns the resource until
// Release.
func (p *Pool[R]) Acquire() (*Handle[R], error) {
	s := p.state
	if s == nil {
		return nil, ErrNoFactory
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrPoolClosed
	}
	var r *R
	if len(s.idle) > 0 {
		r = s.idle[0]
		s.idle = s.idle[1:]
	} else {
		if s.factory == nil {
			return nil, ErrNoFactory
		}
		r = s.factory()
	}
	return &Handle[R]{res: r, state: s}, nil
}

// IdleCount reports how many resources are parked in the idle queue.
func (p *Pool[R]) IdleCount() int {
	s := p.state
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.idle)
}

// Drain destroys every idle resource. Outstanding handles are
// unaffected and still recycle into the pool on release.
func (p *Pool[R]) Drain() {
	if p.state != nil {
		p.state.drain()
	}
}

// Close marks the pool dead and destroys the idle queue. Handles
// released afterwards destroy their resource instead of recycling it.
func (p *Pool[R]) Close() {
	s := p.state
	if s == nil {
		return
	}
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.drain()
}

func (s *poolState[R]) drain() {
	s.mu.Lock()
	idle := s.idle
	s.idle = nil
	fin := s.finalizer
	s.mu.Unlock()

	if fin == nil {
		return
	}
	for _, r := range idle {
		fin(r)
	}
}

// recycle is the handle's return path. It must tolerate running on any
// goroutine, concurrently with Acquire.
func (s *poolState[R]) recycle(r *R) {
	s.mu.Lock()
	if !s.closed {
		s.idle = append(s.idle, r)
		s.mu.Unlock()
		return
	}
	fin := s.finalizer
	s.mu.Unlock()

	if fin != nil {
		fin(r)
	}
}

// Handle is a unique borrow of one pooled resource. It keeps a
// back-reference to the pool state so Release can test liveness.
type Handle[R any] struct {
	res   *R
	state *poolState[R]
}

// Resource returns the borrowed resource, or nil after Release.
func (h *Handle[R]) Resource() *R {
	return h.res
}

// Release returns the resource to the tail of the pool's idle queue,
// or destroys it if the pool has been closed. The second and later
// calls are no-ops.
func (h *Handle[R]) Release() {
	if h == nil || h.res == nil {
		return
	}
	r := h.res
	h.res = nil
	h.state.recycle(r)
}
