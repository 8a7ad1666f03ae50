// Package service is the single write entry point into the engine.
// All coordination between the domain book, the resource pool, metrics,
// and logging happens here.
package service

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"kestrel/domain/book"
	"kestrel/infra/memory"
	"kestrel/infra/metrics"
)

var (
	// ErrInvalidOrder is returned when the book rejects parameters.
	ErrInvalidOrder = errors.New("service: invalid order parameters")
	// ErrUnknownOrder is returned for IDs the book does not know: never
	// issued, or already cancelled.
	ErrUnknownOrder = errors.New("service: unknown order")
	// ErrOrderDone is returned when mutating an order that already
	// filled completely.
	ErrOrderDone = errors.New("service: order already filled")
)

// OrderTicket is the pooled scratch object carrying one command
// through the engine. Tickets are recycled, not reallocated, per call.
type OrderTicket struct {
	Price int64
	Size  int64
	IsBid bool
}

// Engine owns the book and serialises all access to it, including the
// background depth job.
type Engine struct {
	mu      sync.Mutex
	book    *book.Book
	tickets *memory.Pool[OrderTicket]
	log     *zap.Logger
	metrics *metrics.Collector
}

// NewEngine wires all dependencies. A nil logger or collector is
// replaced with a no-op logger or a fresh collector.
func NewEngine(b *book.Book, log *zap.Logger, m *metrics.Collector) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewCollector()
	}
	return &Engine{
		book:    b,
		tickets: memory.New[OrderTicket](),
		log:     log,
		metrics: m,
	}
}

// Metrics exposes the engine's collector for serving.
func (e *Engine) Metrics() *metrics.Collector { return e.metrics }

//
// Commands
//

// PlaceOrder submits a limit order and returns its ID. The ID is valid
// even when the order filled completely on entry.
func (e *Engine) PlaceOrder(price, size int64, isBid bool) (int64, error) {
	h, err := e.tickets.Acquire()
	if err != nil {
		return -1, err
	}
	defer func() {
		h.Release()
		e.metrics.TicketRecycled()
	}()

	tk := h.Resource()
	tk.Price, tk.Size, tk.IsBid = price, size, isBid

	e.mu.Lock()
	ok, id := e.book.AddOrder(tk.Price, tk.Size, tk.IsBid)
	var filled int64
	if ok {
		_, st := e.book.OrderStatus(id)
		filled = st.FilledSize
	}
	e.mu.Unlock()

	if !ok {
		e.metrics.OrderRejected()
		e.log.Debug("order rejected",
			zap.Int64("price", price), zap.Int64("size", size), zap.Bool("bid", isBid))
		return -1, ErrInvalidOrder
	}

	e.metrics.OrderAccepted()
	if filled > 0 {
		e.metrics.VolumeMatched(filled)
	}
	e.log.Debug("order placed",
		zap.Int64("order", id),
		zap.Int64("price", price),
		zap.Int64("size", size),
		zap.Bool("bid", isBid),
		zap.Int64("filled", filled))
	return id, nil
}

// CancelOrder removes the unfilled part of an active order and returns
// its state right before cancellation.
func (e *Engine) CancelOrder(id int64) (book.OrderState, error) {
	e.mu.Lock()
	ok, st := e.book.CancelOrder(id)
	e.mu.Unlock()

	if !ok {
		return st, terminalErr(st)
	}
	e.metrics.OrderCancelled()
	e.log.Debug("order cancelled", zap.Int64("order", id))
	return st, nil
}

// AmendOrder changes an active order's price and/or size.
func (e *Engine) AmendOrder(id, newPrice, newSize int64) (book.OrderState, error) {
	e.mu.Lock()
	ok, st := e.book.UpdateOrder(id, newPrice, newSize)
	e.mu.Unlock()

	if !ok {
		if active, _ := e.OrderStatus(id); active {
			return st, ErrInvalidOrder
		}
		return st, terminalErr(st)
	}
	e.metrics.OrderAmended()
	e.log.Debug("order amended",
		zap.Int64("order", id), zap.Int64("price", newPrice), zap.Int64("size", newSize))
	return st, nil
}

// terminalErr maps a failed mutation on an inactive order to the
// right sentinel: a real state means the order completed earlier.
func terminalErr(st book.OrderState) error {
	if st.FilledSize >= 0 {
		return ErrOrderDone
	}
	return ErrUnknownOrder
}

//
// Queries
//

// OrderStatus reports whether the order is active and its filled state.
func (e *Engine) OrderStatus(id int64) (bool, book.OrderState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.book.OrderStatus(id)
}

// TopOfBook returns the L1 snapshot.
func (e *Engine) TopOfBook() book.L1Data {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.book.L1()
}

// Depth returns the L2 snapshot.
func (e *Engine) Depth() book.L2Data {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.book.L2()
}
