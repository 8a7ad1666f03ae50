package book

import (
	"container/list"
	"errors"
	"fmt"

	"kestrel/infra/sequence"
)

// ErrBadIncrement is returned by New when maxPrice is not a multiple
// of increment.
var ErrBadIncrement = errors.New("book: max price must be divisible by increment")

// Book is a single-instrument limit order book. It is single-writer by
// design: callers serialise access externally.
type Book struct {
	maxPrice int64
	incr     int64

	seq *sequence.Sequencer

	// Dense array of every representable price level. Non-empty levels
	// are threaded per side via prevIdx/nextIdx. The "last" endpoint is
	// the best price of its side.
	levels        []orderLevel
	firstBidIdx   int // lowest bid
	lastBidIdx    int // highest bid
	firstOfferIdx int // highest offer
	lastOfferIdx  int // lowest offer

	active map[int64]*list.Element
	done   map[int64]OrderState // fully filled orders only, never cancelled ones
}

// New creates an empty book accepting prices in [0, maxPrice] on the
// given increment.
func New(maxPrice, increment int64) (*Book, error) {
	if maxPrice <= 0 || increment <= 0 {
		return nil, fmt.Errorf("book: invalid bounds max=%d incr=%d", maxPrice, increment)
	}
	if maxPrice%increment != 0 {
		return nil, ErrBadIncrement
	}
	b := &Book{
		maxPrice:      maxPrice,
		incr:          increment,
		seq:           sequence.New(),
		levels:        make([]orderLevel, maxPrice/increment+1),
		firstBidIdx:   -1,
		lastBidIdx:    -1,
		firstOfferIdx: -1,
		lastOfferIdx:  -1,
		active:        make(map[int64]*list.Element),
		done:          make(map[int64]OrderState),
	}
	return b, nil
}

// AddOrder enters a limit order, matching it immediately against the
// opposite side where prices cross and resting any remainder. The
// returned ID is valid even when the order filled completely on entry.
// Invalid parameters return (false, -1) and leave the book untouched.
func (b *Book) AddOrder(price, size int64, isBid bool) (bool, int64) {
	if !b.validOrder(price, size) {
		return false, -1
	}

	originalSize := size
	newIdx := int(price / b.incr)
	var filledValue int64

	if isBid {
		curr := b.lastOfferIdx
		for curr >= 0 && curr <= newIdx && size > 0 {
			next, left := b.fillLevel(curr, size)
			filledValue += (size - left) * int64(curr) * b.incr
			curr, size = next, left
		}
		b.lastOfferIdx = curr
		if curr < 0 {
			b.firstOfferIdx = -1
		} else {
			b.levels[curr].nextIdx = -1 // curr is the best offer again
		}
	} else {
		curr := b.lastBidIdx
		for curr >= 0 && curr >= newIdx && size > 0 {
			next, left := b.fillLevel(curr, size)
			filledValue += (size - left) * int64(curr) * b.incr
			curr, size = next, left
		}
		b.lastBidIdx = curr
		if curr < 0 {
			b.firstBidIdx = -1
		} else {
			b.levels[curr].nextIdx = -1
		}
	}

	id := b.seq.Next()

	// Fully consumed on entry: no resting order is created.
	if size == 0 {
		b.done[id] = OrderState{
			FilledSize:   originalSize,
			AveragePrice: float64(filledValue) / float64(originalSize),
		}
		return true, id
	}

	lvl := &b.levels[newIdx]
	if lvl.totalSize == 0 {
		b.linkLevel(newIdx, isBid)
	}
	el := lvl.orders.PushBack(&limitOrder{
		id:            id,
		price:         price,
		originalSize:  originalSize,
		remainingSize: size,
		filledValue:   filledValue,
	})
	lvl.totalSize += size
	b.active[id] = el

	return true, id
}

// OrderStatus reports whether the order is active and its filled
// state. Done orders report (false, final state); unknown IDs report
// (false, invalid state).
func (b *Book) OrderStatus(id int64) (bool, OrderState) {
	if el, ok := b.active[id]; ok {
		return true, el.Value.(*limitOrder).state()
	}
	if st, ok := b.done[id]; ok {
		return false, st
	}
	return false, invalidState()
}

// CancelOrder removes the unfilled part of an active order. Cancelled
// orders do not enter the done map. Returns the state right before
// cancellation.
func (b *Book) CancelOrder(id int64) (bool, OrderState) {
	active, st := b.OrderStatus(id)
	if !active {
		return false, st
	}

	el := b.active[id]
	o := el.Value.(*limitOrder)
	idx := int(o.price / b.incr)

	lvl := &b.levels[idx]
	lvl.totalSize -= o.remainingSize
	lvl.orders.Remove(el)
	delete(b.active, id)

	if lvl.totalSize == 0 {
		b.unlinkLevel(idx)
	}
	return true, st
}

// UpdateOrder amends an active order's price and/or size. Same-price
// amends adjust sizes in place and keep queue priority. A price change
// cancels and re-enters the remainder at the new price, losing
// priority; the public ID follows the order to its new entry. newSize
// covers the whole order including what already filled, so it must
// exceed the filled amount.
func (b *Book) UpdateOrder(id, newPrice, newSize int64) (bool, OrderState) {
	active, st := b.OrderStatus(id)
	if !active {
		return false, st
	}
	if !b.validOrder(newPrice, newSize) || st.FilledSize >= newSize {
		return false, st
	}

	el := b.active[id]
	o := el.Value.(*limitOrder)

	if o.price == newPrice {
		newRemaining := newSize - st.FilledSize
		b.levels[int(o.price/b.incr)].totalSize += newRemaining - o.remainingSize
		o.remainingSize = newRemaining
		o.originalSize = newSize
		return true, st
	}

	idx := int(o.price / b.incr)
	isBid := b.isBid(idx) // side must be read before the cancel

	b.CancelOrder(id)
	_, newID := b.AddOrder(newPrice, newSize-st.FilledSize, isBid)

	// The caller keeps using the original ID, so rebind it to the new
	// internal entry and retire the freshly issued one.
	if el2, ok := b.active[newID]; ok {
		b.active[id] = el2
		delete(b.active, newID)
		el2.Value.(*limitOrder).id = id
	} else {
		// The re-entered remainder crossed and filled completely.
		b.done[id] = b.done[newID]
		delete(b.done, newID)
	}
	return true, st
}

// L1 returns the best price and total size of each side.
func (b *Book) L1() L1Data {
	l1 := L1Data{BestBid: emptyLevel(), BestOffer: emptyLevel()}
	if b.lastBidIdx >= 0 {
		l1.BestBid = PriceLevel{
			Price:     int64(b.lastBidIdx) * b.incr,
			TotalSize: b.levels[b.lastBidIdx].totalSize,
		}
	}
	if b.lastOfferIdx >= 0 {
		l1.BestOffer = PriceLevel{
			Price:     int64(b.lastOfferIdx) * b.incr,
			TotalSize: b.levels[b.lastOfferIdx].totalSize,
		}
	}
	return l1
}

// L2 returns full depth, walking each side from its best level toward
// worse prices.
func (b *Book) L2() L2Data {
	var l2 L2Data
	for idx := b.lastBidIdx; idx >= 0; idx = b.levels[idx].prevIdx {
		l2.Bids = append(l2.Bids, PriceLevel{
			Price:     int64(idx) * b.incr,
			TotalSize: b.levels[idx].totalSize,
		})
	}
	for idx := b.lastOfferIdx; idx >= 0; idx = b.levels[idx].prevIdx {
		l2.Offers = append(l2.Offers, PriceLevel{
			Price:     int64(idx) * b.incr,
			TotalSize: b.levels[idx].totalSize,
		})
	}
	return l2
}

// isBid reports the side of an occupied level. Bids and offers never
// cross, so any occupied index at or below the best bid is a bid.
func (b *Book) isBid(idx int) bool {
	return idx <= b.lastBidIdx
}

func (b *Book) validOrder(price, size int64) bool {
	return price >= 0 && price <= b.maxPrice && price%b.incr == 0 && size > 0
}
