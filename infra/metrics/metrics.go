// Package metrics collects prometheus metrics for the engine: order
// flow counters, book depth gauges, scheduler executions, and pool
// recycling. Scraped through the handler returned by Handler.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns one registry and every metric the engine exposes.
type Collector struct {
	reg *prometheus.Registry

	ordersAccepted  prometheus.Counter
	ordersRejected  prometheus.Counter
	ordersCancelled prometheus.Counter
	ordersAmended   prometheus.Counter
	volumeMatched   prometheus.Counter

	tasksExecuted   prometheus.Counter
	ticketsRecycled prometheus.Counter

	bestBid    prometheus.Gauge
	bestOffer  prometheus.Gauge
	bidLevels  prometheus.Gauge
	offerLevel prometheus.Gauge
}

// NewCollector builds and registers the engine's metric set on a
// fresh registry.
func NewCollector() *Collector {
	c := &Collector{
		reg: prometheus.NewRegistry(),
		ordersAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "engine_orders_accepted_total",
			Help: "Total number of orders accepted into the book",
		}),
		ordersRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "engine_orders_rejected_total",
			Help: "Total number of orders rejected on validation",
		}),
		ordersCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "engine_orders_cancelled_total",
			Help: "Total number of orders cancelled",
		}),
		ordersAmended: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "engine_orders_amended_total",
			Help: "Total number of orders amended",
		}),
		volumeMatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "engine_volume_matched_total",
			Help: "Total size matched across all fills",
		}),
		tasksExecuted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "engine_tasks_executed_total",
			Help: "Total number of scheduler task executions",
		}),
		ticketsRecycled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "engine_tickets_recycled_total",
			Help: "Total number of order tickets returned to the pool",
		}),
		bestBid: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "engine_best_bid_price",
			Help: "Best bid price, -1 when no bids rest",
		}),
		bestOffer: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "engine_best_offer_price",
			Help: "Best offer price, -1 when no offers rest",
		}),
		bidLevels: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "engine_bid_levels",
			Help: "Number of non-empty bid levels",
		}),
		offerLevel: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "engine_offer_levels",
			Help: "Number of non-empty offer levels",
		}),
	}
	c.reg.MustRegister(
		c.ordersAccepted, c.ordersRejected, c.ordersCancelled,
		c.ordersAmended, c.volumeMatched,
		c.tasksExecuted, c.ticketsRecycled,
		c.bestBid, c.bestOffer, c.bidLevels, c.offerLevel,
	)
	return c
}

// Handler serves the registry in prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry { return c.reg }

func (c *Collector) OrderAccepted()          { c.ordersAccepted.Inc() }
func (c *Collector) OrderRejected()          { c.ordersRejected.Inc() }
func (c *Collector) OrderCancelled()         { c.ordersCancelled.Inc() }
func (c *Collector) OrderAmended()           { c.ordersAmended.Inc() }
func (c *Collector) VolumeMatched(qty int64) { c.volumeMatched.Add(float64(qty)) }
func (c *Collector) TaskExecuted()           { c.tasksExecuted.Inc() }
func (c *Collector) TicketRecycled()         { c.ticketsRecycled.Inc() }

// SetDepth refreshes the book gauges from an L1/L2 snapshot.
func (c *Collector) SetDepth(bestBid, bestOffer float64, bidLevels, offerLevels int) {
	c.bestBid.Set(bestBid)
	c.bestOffer.Set(bestOffer)
	c.bidLevels.Set(float64(bidLevels))
	c.offerLevel.Set(float64(offerLevels))
}
