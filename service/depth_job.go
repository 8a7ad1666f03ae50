package service

import (
	"time"

	"go.uber.org/zap"

	"kestrel/sched"
)

// ExecuteTask is the task body for a scheduler wired to this engine:
// every occurrence refreshes the depth gauges. Install it with
// sched.WithExecutor when constructing the scheduler.
func (e *Engine) ExecuteTask(t sched.Task) {
	e.RefreshDepth()
	if t.Running > 0 {
		time.Sleep(t.Running)
	}
}

// RefreshDepth publishes the current book shape to the metric gauges.
func (e *Engine) RefreshDepth() {
	e.mu.Lock()
	l1 := e.book.L1()
	l2 := e.book.L2()
	e.mu.Unlock()

	e.metrics.SetDepth(
		float64(l1.BestBid.Price),
		float64(l1.BestOffer.Price),
		len(l2.Bids),
		len(l2.Offers),
	)
	e.log.Debug("depth refreshed",
		zap.Int64("best_bid", l1.BestBid.Price),
		zap.Int64("best_offer", l1.BestOffer.Price))
}

// StartDepthJob schedules the repeating depth refresh on s, first
// occurrence one interval from now. The returned ID cancels the job.
func (e *Engine) StartDepthJob(s *sched.Scheduler, interval time.Duration) (int64, error) {
	return s.ScheduleRepeated(time.Now().Add(interval), interval, 0)
}
