package service

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"kestrel/domain/book"
	"kestrel/sched"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	b, err := book.New(1000, 1)
	require.NoError(t, err)
	return NewEngine(b, zap.NewNop(), nil)
}

func TestPlaceAndQuery(t *testing.T) {
	e := newTestEngine(t)

	id, err := e.PlaceOrder(100, 5, true)
	require.NoError(t, err)
	require.Positive(t, id)

	active, st := e.OrderStatus(id)
	require.True(t, active)
	require.EqualValues(t, 0, st.FilledSize)

	l1 := e.TopOfBook()
	require.EqualValues(t, 100, l1.BestBid.Price)
	require.EqualValues(t, 5, l1.BestBid.TotalSize)
}

func TestPlaceRejectsInvalid(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.PlaceOrder(100, 0, true)
	require.ErrorIs(t, err, ErrInvalidOrder)
	_, err = e.PlaceOrder(2000, 5, true)
	require.ErrorIs(t, err, ErrInvalidOrder)
}

func TestCancelErrors(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.CancelOrder(42)
	require.ErrorIs(t, err, ErrUnknownOrder)

	offerID, err := e.PlaceOrder(100, 4, false)
	require.NoError(t, err)
	_, err = e.PlaceOrder(100, 4, true)
	require.NoError(t, err)

	_, err = e.CancelOrder(offerID)
	require.ErrorIs(t, err, ErrOrderDone)
}

func TestAmendErrors(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.AmendOrder(42, 100, 5)
	require.ErrorIs(t, err, ErrUnknownOrder)

	id, err := e.PlaceOrder(100, 5, true)
	require.NoError(t, err)

	_, err = e.AmendOrder(id, 101, 0)
	require.ErrorIs(t, err, ErrInvalidOrder)

	st, err := e.AmendOrder(id, 101, 8)
	require.NoError(t, err)
	require.EqualValues(t, 0, st.FilledSize)
	require.EqualValues(t, 101, e.TopOfBook().BestBid.Price)
}

func TestCrossingFlow(t *testing.T) {
	e := newTestEngine(t)

	offerID, err := e.PlaceOrder(100, 10, false)
	require.NoError(t, err)
	bidID, err := e.PlaceOrder(100, 4, true)
	require.NoError(t, err)

	active, st := e.OrderStatus(bidID)
	require.False(t, active)
	require.EqualValues(t, 4, st.FilledSize)

	active, st = e.OrderStatus(offerID)
	require.True(t, active)
	require.EqualValues(t, 4, st.FilledSize)

	depth := e.Depth()
	require.Len(t, depth.Offers, 1)
	require.Empty(t, depth.Bids)
}

func TestDepthJobRefreshesGauges(t *testing.T) {
	e := newTestEngine(t)

	s := sched.New(time.Now(),
		sched.WithMaxDuration(2*time.Second),
		sched.WithExecutor(e.ExecuteTask),
		sched.WithObserver(func(sched.Task) { e.Metrics().TaskExecuted() }),
	)
	defer s.Close()

	_, err := e.PlaceOrder(99, 5, true)
	require.NoError(t, err)
	_, err = e.PlaceOrder(101, 5, false)
	require.NoError(t, err)

	jobID, err := e.StartDepthJob(s, 50*time.Millisecond)
	require.NoError(t, err)

	time.Sleep(250 * time.Millisecond)
	require.NoError(t, s.Cancel(jobID))

	expected := strings.NewReader(`# HELP engine_best_bid_price Best bid price, -1 when no bids rest
# TYPE engine_best_bid_price gauge
engine_best_bid_price 99
# HELP engine_best_offer_price Best offer price, -1 when no offers rest
# TYPE engine_best_offer_price gauge
engine_best_offer_price 101
`)
	require.NoError(t, testutil.GatherAndCompare(e.Metrics().Registry(), expected,
		"engine_best_bid_price", "engine_best_offer_price"))
}

func TestMetricsCountOrderFlow(t *testing.T) {
	e := newTestEngine(t)

	_, _ = e.PlaceOrder(100, 5, true)   // accepted
	_, _ = e.PlaceOrder(100, 0, true)   // rejected
	id, _ := e.PlaceOrder(101, 5, true) // accepted
	_, _ = e.CancelOrder(id)

	expected := strings.NewReader(`# HELP engine_orders_accepted_total Total number of orders accepted into the book
# TYPE engine_orders_accepted_total counter
engine_orders_accepted_total 2
# HELP engine_orders_cancelled_total Total number of orders cancelled
# TYPE engine_orders_cancelled_total counter
engine_orders_cancelled_total 1
# HELP engine_orders_rejected_total Total number of orders rejected on validation
# TYPE engine_orders_rejected_total counter
engine_orders_rejected_total 1
# HELP engine_tickets_recycled_total Total number of order tickets returned to the pool
# TYPE engine_tickets_recycled_total counter
engine_tickets_recycled_total 3
`)
	require.NoError(t, testutil.GatherAndCompare(e.Metrics().Registry(), expected,
		"engine_orders_accepted_total",
		"engine_orders_rejected_total",
		"engine_orders_cancelled_total",
		"engine_tickets_recycled_total"))
}
