package book

import "container/list"

// orderLevel holds the resting orders at one price, FIFO by arrival.
// prevIdx points at the adjacent non-empty level in the direction of
// worse price for the side (lower for bids, higher for offers);
// nextIdx toward better price. -1 terminates the chain. A level with
// totalSize 0 is empty and not part of any chain.
type orderLevel struct {
	orders    list.List // of *limitOrder
	totalSize int64
	prevIdx   int
	nextIdx   int
}

// fillLevel matches up to size against the FIFO at idx. Orders whose
// remaining size reaches zero move from the active map to the done
// map. Returns the next level index to sweep (prevIdx if this level
// was exhausted, else idx itself) and the unmatched remainder.
func (b *Book) fillLevel(idx int, size int64) (int, int64) {
	lvl := &b.levels[idx]
	price := int64(idx) * b.incr

	for el := lvl.orders.Front(); el != nil && size > 0; {
		o := el.Value.(*limitOrder)
		qty := min(size, o.remainingSize)
		size -= qty
		o.remainingSize -= qty
		o.filledValue += qty * price
		lvl.totalSize -= qty

		if o.remainingSize > 0 {
			break
		}
		next := el.Next()
		lvl.orders.Remove(el)
		delete(b.active, o.id)
		b.done[o.id] = o.doneState()
		el = next
	}

	if lvl.totalSize == 0 {
		return lvl.prevIdx, size
	}
	return idx, size
}

// linkLevel splices a newly non-empty level into its side's chain.
// Both pointers are assigned in every branch: a level that died
// earlier carries stale indices from its previous life.
func (b *Book) linkLevel(newIdx int, isBid bool) {
	lvl := &b.levels[newIdx]
	if isBid {
		switch {
		case b.lastBidIdx < 0: // the only bid
			lvl.prevIdx, lvl.nextIdx = -1, -1
			b.lastBidIdx, b.firstBidIdx = newIdx, newIdx
		case newIdx > b.lastBidIdx: // the new highest bid
			lvl.prevIdx, lvl.nextIdx = b.lastBidIdx, -1
			b.levels[b.lastBidIdx].nextIdx = newIdx
			b.lastBidIdx = newIdx
		case newIdx < b.firstBidIdx: // the new lowest bid
			lvl.prevIdx, lvl.nextIdx = -1, b.firstBidIdx
			b.levels[b.firstBidIdx].prevIdx = newIdx
			b.firstBidIdx = newIdx
		default: // somewhere in the middle
			curr := b.lastBidIdx
			for curr > newIdx {
				curr = b.levels[curr].prevIdx
			}
			next := b.levels[curr].nextIdx
			lvl.prevIdx, lvl.nextIdx = curr, next
			b.levels[curr].nextIdx = newIdx
			b.levels[next].prevIdx = newIdx
		}
		return
	}

	switch {
	case b.lastOfferIdx < 0: // the only offer
		lvl.prevIdx, lvl.nextIdx = -1, -1
		b.lastOfferIdx, b.firstOfferIdx = newIdx, newIdx
	case newIdx < b.lastOfferIdx: // the new lowest offer
		lvl.prevIdx, lvl.nextIdx = b.lastOfferIdx, -1
		b.levels[b.lastOfferIdx].nextIdx = newIdx
		b.lastOfferIdx = newIdx
	case newIdx > b.firstOfferIdx: // the new highest offer
		lvl.prevIdx, lvl.nextIdx = -1, b.firstOfferIdx
		b.levels[b.firstOfferIdx].prevIdx = newIdx
		b.firstOfferIdx = newIdx
	default:
		curr := b.lastOfferIdx
		for curr < newIdx {
			curr = b.levels[curr].prevIdx
		}
		next := b.levels[curr].nextIdx
		lvl.prevIdx, lvl.nextIdx = curr, next
		b.levels[curr].nextIdx = newIdx
		b.levels[next].prevIdx = newIdx
	}
}

// unlinkLevel removes a now-empty level from its side's chain and
// advances the endpoints it terminated.
func (b *Book) unlinkLevel(idx int) {
	isBid := b.isBid(idx)
	lvl := &b.levels[idx]
	next, prev := lvl.nextIdx, lvl.prevIdx

	if next >= 0 {
		b.levels[next].prevIdx = prev
	}
	if prev >= 0 {
		b.levels[prev].nextIdx = next
	}

	if isBid {
		if next < 0 {
			b.lastBidIdx = prev
		}
		if prev < 0 {
			b.firstBidIdx = next
		}
	} else {
		if next < 0 {
			b.lastOfferIdx = prev
		}
		if prev < 0 {
			b.firstOfferIdx = next
		}
	}
	lvl.prevIdx, lvl.nextIdx = -1, -1
}
