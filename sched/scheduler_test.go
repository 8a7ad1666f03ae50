package sched

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder captures executions so tests can assert on order and time.
type recorder struct {
	mu   sync.Mutex
	runs []run
}

type run struct {
	id int64
	at time.Time
}

func (r *recorder) executor(t Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, run{id: t.ID, at: time.Now()})
}

func (r *recorder) snapshot() []run {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]run(nil), r.runs...)
}

func newTestScheduler(t *testing.T, rec *recorder, window time.Duration) *Scheduler {
	t.Helper()
	s := New(time.Now(),
		WithMaxDuration(window),
		WithExecutor(rec.executor),
	)
	t.Cleanup(s.Close)
	return s
}

func TestEarliestDeadlineOrdering(t *testing.T) {
	rec := &recorder{}
	s := newTestScheduler(t, rec, 2*time.Second)
	now := time.Now()

	// Admitted latest-first; execution must still be earliest-first.
	a, err := s.ScheduleOnce(now.Add(420*time.Millisecond), 0)
	require.NoError(t, err)
	b, err := s.ScheduleOnce(now.Add(360*time.Millisecond), 0)
	require.NoError(t, err)
	c, err := s.ScheduleOnce(now.Add(300*time.Millisecond), 0)
	require.NoError(t, err)

	time.Sleep(600 * time.Millisecond)

	runs := rec.snapshot()
	require.Len(t, runs, 3)
	require.Equal(t, []int64{c, b, a}, []int64{runs[0].id, runs[1].id, runs[2].id})

	starts := map[int64]time.Time{
		a: now.Add(420 * time.Millisecond),
		b: now.Add(360 * time.Millisecond),
		c: now.Add(300 * time.Millisecond),
	}
	for _, r := range runs {
		// The loop may start a head task up to the slack early.
		earliest := starts[r.id].Add(-defaultMinSlack - 5*time.Millisecond)
		assert.False(t, r.at.Before(earliest), "task %d ran too early", r.id)
	}
}

func TestTaskIDsAreMonotonic(t *testing.T) {
	rec := &recorder{}
	s := newTestScheduler(t, rec, time.Second)
	now := time.Now()

	id1, err := s.ScheduleOnce(now.Add(time.Hour), 0)
	require.NoError(t, err)
	id2, err := s.ScheduleRepeated(now.Add(time.Hour), time.Second, 0)
	require.NoError(t, err)
	require.Greater(t, id2, id1)
	require.Positive(t, id1)
}

func TestImmediateTaskRunsPromptly(t *testing.T) {
	rec := &recorder{}
	s := newTestScheduler(t, rec, time.Second)

	_, err := s.ScheduleOnce(time.Now(), 0)
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)
	require.Len(t, rec.snapshot(), 1)
}

func TestCancelPendingOneShot(t *testing.T) {
	rec := &recorder{}
	s := newTestScheduler(t, rec, 800*time.Millisecond)

	id, err := s.ScheduleOnce(time.Now().Add(300*time.Millisecond), 0)
	require.NoError(t, err)
	require.NoError(t, s.Cancel(id))

	<-s.Done()
	require.Empty(t, rec.snapshot(), "cancelled task must not run")
}

func TestCancelUnknownTask(t *testing.T) {
	rec := &recorder{}
	s := newTestScheduler(t, rec, time.Second)
	require.ErrorIs(t, s.Cancel(99), ErrTaskNotFound)
}

func TestCancelExecutedOneShot(t *testing.T) {
	rec := &recorder{}
	s := newTestScheduler(t, rec, time.Second)

	id, err := s.ScheduleOnce(time.Now(), 0)
	require.NoError(t, err)
	time.Sleep(100 * time.Millisecond)

	require.ErrorIs(t, s.Cancel(id), ErrTaskExecuted)
}

func TestRepeatingTaskRunsAndStops(t *testing.T) {
	rec := &recorder{}
	s := newTestScheduler(t, rec, 5*time.Second)
	now := time.Now()

	id, err := s.ScheduleRepeated(now.Add(50*time.Millisecond), 150*time.Millisecond, 0)
	require.NoError(t, err)

	time.Sleep(550 * time.Millisecond)
	require.NoError(t, s.Cancel(id))
	ran := len(rec.snapshot())
	require.GreaterOrEqual(t, ran, 3, "expected several occurrences before cancel")

	// Two more intervals of quiet: the cancel stopped future repeats.
	time.Sleep(350 * time.Millisecond)
	require.Len(t, rec.snapshot(), ran)
}

func TestCancelRepeatingReportsSuccessAfterPop(t *testing.T) {
	block := make(chan struct{})
	var once sync.Once
	s := New(time.Now(),
		WithMaxDuration(2*time.Second),
		WithExecutor(func(Task) {
			once.Do(func() { close(block) })
			time.Sleep(200 * time.Millisecond)
		}),
	)
	defer s.Close()

	id, err := s.ScheduleRepeated(time.Now(), 50*time.Millisecond, 0)
	require.NoError(t, err)

	// The occurrence is mid-execution, so nothing is pending, yet
	// stopping the repeats still succeeds.
	<-block
	require.NoError(t, s.Cancel(id))

	time.Sleep(400 * time.Millisecond)
	require.ErrorIs(t, s.Cancel(id), ErrTaskExecuted)
}

func TestRepeatIntervalFromScheduledStart(t *testing.T) {
	rec := &recorder{}
	s := newTestScheduler(t, rec, 2*time.Second)
	now := time.Now()

	id, err := s.ScheduleRepeated(now.Add(100*time.Millisecond), 200*time.Millisecond, 0)
	require.NoError(t, err)

	time.Sleep(650 * time.Millisecond)
	require.NoError(t, s.Cancel(id))

	runs := rec.snapshot()
	require.GreaterOrEqual(t, len(runs), 2)
	for i, r := range runs {
		want := now.Add(time.Duration(100+200*i) * time.Millisecond)
		earliest := want.Add(-defaultMinSlack - 5*time.Millisecond)
		assert.False(t, r.at.Before(earliest),
			"occurrence %d ran before its scheduled start", i)
	}
}

func TestAdmissionDuringLongRunWaits(t *testing.T) {
	rec := &recorder{}
	s := New(time.Now(),
		WithMaxDuration(2*time.Second),
		WithExecutor(func(t Task) {
			rec.executor(t)
			time.Sleep(t.Running)
		}),
	)
	defer s.Close()
	now := time.Now()

	// A long task occupies the loop; a later admission for an earlier
	// deadline must still run, delayed, once the loop frees up.
	long, err := s.ScheduleOnce(now, 300*time.Millisecond)
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	short, err := s.ScheduleOnce(now.Add(100*time.Millisecond), 0)
	require.NoError(t, err)

	time.Sleep(500 * time.Millisecond)
	runs := rec.snapshot()
	require.Len(t, runs, 2)
	require.Equal(t, []int64{long, short}, []int64{runs[0].id, runs[1].id})
}

func TestCloseDropsPending(t *testing.T) {
	rec := &recorder{}
	s := New(time.Now(), WithMaxDuration(time.Minute), WithExecutor(rec.executor))

	_, err := s.ScheduleOnce(time.Now().Add(200*time.Millisecond), 0)
	require.NoError(t, err)
	s.Close()

	_, err = s.ScheduleOnce(time.Now(), 0)
	require.ErrorIs(t, err, ErrSchedulerClosed)
	require.ErrorIs(t, s.Cancel(1), ErrSchedulerClosed)

	time.Sleep(300 * time.Millisecond)
	require.Empty(t, rec.snapshot())
}

func TestRunWindowExpiry(t *testing.T) {
	rec := &recorder{}
	s := New(time.Now(), WithMaxDuration(200*time.Millisecond), WithExecutor(rec.executor))
	defer s.Close()

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("event loop did not expire at the end of its run window")
	}

	_, err := s.ScheduleOnce(time.Now(), 0)
	require.ErrorIs(t, err, ErrSchedulerClosed)
}

func TestObserverSeesEachExecution(t *testing.T) {
	var mu sync.Mutex
	var observed []int64
	s := New(time.Now(),
		WithMaxDuration(time.Second),
		WithExecutor(func(Task) {}),
		WithObserver(func(t Task) {
			mu.Lock()
			observed = append(observed, t.ID)
			mu.Unlock()
		}),
	)
	defer s.Close()

	id, err := s.ScheduleOnce(time.Now(), 0)
	require.NoError(t, err)
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []int64{id}, observed)
}
