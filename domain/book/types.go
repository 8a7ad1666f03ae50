package book

// OrderState reports the filled part of an order. FilledSize -1 marks
// an unknown or invalid order.
type OrderState struct {
	FilledSize   int64
	AveragePrice float64
}

// PriceLevel is one rung of depth. Price -1 marks an absent side.
type PriceLevel struct {
	Price     int64
	TotalSize int64
}

// L1Data is the best-price snapshot of both sides.
type L1Data struct {
	BestBid   PriceLevel
	BestOffer PriceLevel
}

// L2Data is the full depth snapshot: bids in decreasing price order,
// offers in increasing price order.
type L2Data struct {
	Bids   []PriceLevel
	Offers []PriceLevel
}

func invalidState() OrderState {
	return OrderState{FilledSize: -1}
}

func emptyLevel() PriceLevel {
	return PriceLevel{Price: -1, TotalSize: -1}
}

// limitOrder is one resting order. filledValue accumulates qty*price
// per fill so the average price can be derived at reporting time.
type limitOrder struct {
	id            int64
	price         int64
	originalSize  int64
	remainingSize int64
	filledValue   int64
}

func (o *limitOrder) state() OrderState {
	filled := o.originalSize - o.remainingSize
	st := OrderState{FilledSize: filled}
	if filled > 0 {
		st.AveragePrice = float64(o.filledValue) / float64(filled)
	}
	return st
}

func (o *limitOrder) doneState() OrderState {
	return OrderState{
		FilledSize:   o.originalSize,
		AveragePrice: float64(o.filledValue) / float64(o.originalSize),
	}
}
