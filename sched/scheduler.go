package sched

import (
	"container/heap"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"kestrel/infra/sequence"
)

var (
	// ErrSchedulerClosed is returned by scheduling calls after the
	// event loop has shut down.
	ErrSchedulerClosed = errors.New("sched: scheduler is shut down")
	// ErrTaskExecuted is returned by Cancel for a one-shot task whose
	// execution has already begun.
	ErrTaskExecuted = errors.New("sched: task already executed")
	// ErrTaskNotFound is returned by Cancel for an unknown task.
	ErrTaskNotFound = errors.New("sched: task not found")
)

const (
	// defaultMaxDuration bounds the scheduler's run window; the loop
	// terminates on its own this long after the start instant.
	defaultMaxDuration = 4 * time.Second
	// defaultMinSlack is how close a head task's start may be to now
	// before the loop runs it instead of arming a timer race.
	defaultMinSlack = 20 * time.Millisecond
)

// Option configures a Scheduler at construction time.
type Option func(*Scheduler)

// WithLogger attaches a logger; zap.NewNop is the default.
func WithLogger(log *zap.Logger) Option {
	return func(s *Scheduler) { s.log = log }
}

// WithMaxDuration overrides the run window.
func WithMaxDuration(d time.Duration) Option {
	return func(s *Scheduler) { s.maxDur = d }
}

// WithMinSlack overrides the immediate-execution slack.
func WithMinSlack(d time.Duration) Option {
	return func(s *Scheduler) { s.minSlack = d }
}

// WithExecutor replaces the task body. The default sleeps for the
// task's running time, standing in for real work.
func WithExecutor(fn func(Task)) Option {
	return func(s *Scheduler) { s.executor = fn }
}

// WithObserver installs a hook invoked after each execution, e.g. for
// metric counters.
func WithObserver(fn func(Task)) Option {
	return func(s *Scheduler) { s.observer = fn }
}

// Scheduler executes tasks at their scheduled times on one dedicated
// goroutine. All exported methods are safe for concurrent use; only
// Close waits for a task that is already executing to finish.
type Scheduler struct {
	log      *zap.Logger
	executor func(Task)
	observer func(Task)
	start    time.Time
	maxDur   time.Duration
	minSlack time.Duration

	mu       sync.Mutex
	pending  taskHeap
	repeated map[int64]time.Duration
	executed map[int64]struct{}
	seq      *sequence.Sequencer
	running  bool
	closed   bool

	wake chan struct{}
	done chan struct{}
}

// New creates a scheduler and starts its event loop. The loop exits on
// Close or once the run window after start has elapsed, whichever
// comes first.
func New(start time.Time, opts ...Option) *Scheduler {
	s := &Scheduler{
		log:      zap.NewNop(),
		start:    start,
		maxDur:   defaultMaxDuration,
		minSlack: defaultMinSlack,
		repeated: make(map[int64]time.Duration),
		executed: make(map[int64]struct{}),
		seq:      sequence.New(),
		running:  true,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.executor == nil {
		s.executor = func(t Task) { time.Sleep(t.Running) }
	}
	go s.run()
	return s
}

// ScheduleOnce admits a one-shot task due at start.
func (s *Scheduler) ScheduleOnce(start time.Time, running time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return -1, ErrSchedulerClosed
	}
	id := s.seq.Next()
	heap.Push(&s.pending, Task{ID: id, Start: start, Running: running})
	s.log.Debug("task admitted", zap.Int64("task", id), zap.Time("start", start))
	s.signal()
	return id, nil
}

// ScheduleRepeated admits a repeating task. The first occurrence is
// due at start; each subsequent occurrence is due interval after the
// previous occurrence's scheduled start, computed after it runs.
func (s *Scheduler) ScheduleRepeated(start time.Time, interval, running time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return -1, ErrSchedulerClosed
	}
	id := s.seq.Next()
	heap.Push(&s.pending, Task{ID: id, Start: start, Running: running})
	s.repeated[id] = interval
	s.log.Debug("repeating task admitted",
		zap.Int64("task", id),
		zap.Time("start", start),
		zap.Duration("interval", interval))
	s.signal()
	return id, nil
}

// Cancel removes a task. For a repeating task it first stops future
// repeats, then removes the next pending occurrence if one exists;
// stopping the repeats alone already counts as success. A completed
// one-shot reports ErrTaskExecuted, an unknown ID ErrTaskNotFound.
func (s *Scheduler) Cancel(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return ErrSchedulerClosed
	}

	ok := false
	if _, repeats := s.repeated[id]; repeats {
		delete(s.repeated, id)
		ok = true
	} else if _, ran := s.executed[id]; ran {
		return ErrTaskExecuted
	}

	if s.pending.removeByID(id) {
		ok = true
	}
	if !ok {
		return ErrTaskNotFound
	}
	s.log.Debug("task cancelled", zap.Int64("task", id))
	s.signal()
	return nil
}

// Close signals the event loop to exit, waits for it to finish, and
// drops any pending tasks without running them. Safe to call more
// than once.
func (s *Scheduler) Close() {
	s.mu.Lock()
	already := s.closed
	s.closed = true
	s.running = false
	s.mu.Unlock()

	if !already {
		s.signal()
	}
	<-s.done
}

// Done is closed once the event loop has exited, whether by Close or
// by reaching the end of the run window.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

// signal wakes the event loop. The send never blocks because a single
// buffered slot is enough to force a re-check of queue state.
func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) run() {
	defer close(s.done)

	deadline := s.start.Add(s.maxDur)
	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	s.log.Info("event loop started", zap.Time("deadline", deadline))

	for {
		// Recompute the wake time from queue state. Any admission,
		// cancellation, or completed run invalidates the previous one.
		s.mu.Lock()
		if s.closed {
			dropped := len(s.pending)
			s.pending = nil
			s.mu.Unlock()
			s.log.Info("event loop closed", zap.Int("dropped", dropped))
			return
		}
		next := deadline
		if len(s.pending) > 0 && s.pending[0].Start.Before(next) {
			next = s.pending[0].Start
		}
		s.mu.Unlock()

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(time.Until(next))

		// Wait until the deadline or an earlier wakeup. Five reasons
		// to stop waiting: admission, cancellation, Close, a due task,
		// or the end of the run window.
		timeout := false
		select {
		case <-timer.C:
			timeout = true
		case <-s.wake:
		}

		s.mu.Lock()
		if s.closed {
			dropped := len(s.pending)
			s.pending = nil
			s.mu.Unlock()
			s.log.Info("event loop closed", zap.Int("dropped", dropped))
			return
		}

		if timeout && next.Equal(deadline) {
			// End of the run window.
			s.running = false
			dropped := len(s.pending)
			s.pending = nil
			s.mu.Unlock()
			s.log.Info("event loop expired", zap.Int("dropped", dropped))
			return
		}

		// Only a cancellation can leave the queue empty here; go back
		// to sleep on the recomputed deadline.
		if len(s.pending) == 0 {
			s.mu.Unlock()
			continue
		}

		head := s.pending[0]
		if timeout || head.Start.Before(time.Now().Add(s.minSlack)) {
			heap.Pop(&s.pending)
			s.executed[head.ID] = struct{}{}
			s.mu.Unlock()

			// Run unlocked so admissions and cancellations proceed
			// during long task bodies.
			s.log.Debug("running task", zap.Int64("task", head.ID))
			s.executor(head)
			if s.observer != nil {
				s.observer(head)
			}

			s.mu.Lock()
			// Re-check the repeat mapping after the run: a cancel
			// during execution must stop future occurrences.
			if interval, ok := s.repeated[head.ID]; ok {
				heap.Push(&s.pending, Task{
					ID:      head.ID,
					Start:   head.Start.Add(interval),
					Running: head.Running,
				})
				s.log.Debug("task re-enqueued", zap.Int64("task", head.ID))
			}
		}
		s.mu.Unlock()
	}
}
