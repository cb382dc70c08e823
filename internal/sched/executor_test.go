package sched

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lulu2002/async-embed/internal/hal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder is a task that logs each poll and stays pending.
type recorder struct {
	mu    sync.Mutex
	order *[]TaskID
}

func (r *recorder) Poll(w Waker) Poll {
	r.mu.Lock()
	*r.order = append(*r.order, w.TaskID())
	r.mu.Unlock()
	return Pending
}

func requireFatal(t *testing.T, target error, fn func()) {
	t.Helper()
	defer func() {
		t.Helper()
		r := recover()
		require.NotNil(t, r, "expected a fatal panic")
		err, ok := r.(error)
		require.True(t, ok, "panic value %v is not an error", r)
		assert.True(t, errors.Is(err, target), "got %v", err)
	}()
	fn()
}

func TestReadyQueueFIFO(t *testing.T) {
	q := NewReadyQueue(4, nil)
	q.Wake(2)
	q.Wake(0)
	q.Wake(3)

	assert.Equal(t, 3, q.Len())
	for _, want := range []TaskID{2, 0, 3} {
		id, ok := q.Dequeue()
		require.True(t, ok)
		assert.Equal(t, want, id)
	}
	_, ok := q.Dequeue()
	assert.False(t, ok)
}

func TestReadyQueueWakeIsIdempotent(t *testing.T) {
	q := NewReadyQueue(2, nil)
	w := q.Waker(1)
	clone := w

	w.Wake()
	clone.Wake()
	w.Wake()
	assert.Equal(t, 1, q.Len())

	id, ok := q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, TaskID(1), id)

	// dequeued: the next wake queues it again
	w.Wake()
	assert.Equal(t, 1, q.Len())
}

func TestReadyQueueOverflowIsFatal(t *testing.T) {
	q := NewReadyQueue(2, nil)
	// identities beyond the capacity are not deduplicated
	q.Wake(7)
	q.Wake(7)
	requireFatal(t, ErrReadyQueueFull, func() { q.Wake(7) })
}

func TestReadyQueueConcurrentProducers(t *testing.T) {
	const producers = 8
	q := NewReadyQueue(producers, nil)

	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func(id TaskID) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				q.Wake(id)
			}
		}(TaskID(i))
	}
	wg.Wait()

	seen := map[TaskID]bool{}
	for {
		id, ok := q.Dequeue()
		if !ok {
			break
		}
		assert.False(t, seen[id], "task %d queued twice", id)
		seen[id] = true
	}
	assert.Len(t, seen, producers)
}

func TestNewValidates(t *testing.T) {
	q := NewReadyQueue(1, nil)
	_, err := New(nil, q)
	assert.Error(t, err)

	var order []TaskID
	tasks := []Task{&recorder{order: &order}, &recorder{order: &order}}
	_, err = New(tasks, q)
	assert.ErrorContains(t, err, "capacity")
}

func TestPrimePollsEveryTaskOnce(t *testing.T) {
	var order []TaskID
	tasks := []Task{&recorder{order: &order}, &recorder{order: &order}, &recorder{order: &order}}
	ex, err := New(tasks, NewReadyQueue(3, nil))
	require.NoError(t, err)

	ex.Prime()
	assert.Equal(t, 3, ex.Drain())
	assert.Equal(t, []TaskID{0, 1, 2}, order)
	assert.Equal(t, 0, ex.Drain())
}

func TestFairnessBetweenReadyTasks(t *testing.T) {
	var order []TaskID
	// A wakes itself on every poll; B must still get its turn first.
	a := TaskFunc(func(w Waker) Poll {
		order = append(order, w.TaskID())
		if len(order) < 4 {
			w.Wake()
		}
		return Pending
	})
	b := TaskFunc(func(w Waker) Poll {
		order = append(order, w.TaskID())
		return Pending
	})
	ex, err := New([]Task{a, b}, NewReadyQueue(2, nil))
	require.NoError(t, err)

	ex.Wake(0)
	ex.Wake(1)
	ex.Drain()
	assert.Equal(t, []TaskID{0, 1, 0, 0}, order)
}

func TestBadTaskIDIsDiscarded(t *testing.T) {
	var order []TaskID
	var events []StatusEvent
	tasks := []Task{&recorder{order: &order}}
	ex, err := New(tasks, NewReadyQueue(4, nil), WithObserver(func(ev StatusEvent) {
		events = append(events, ev)
	}))
	require.NoError(t, err)

	ex.Wake(3)
	ex.Wake(0)
	assert.Equal(t, 1, ex.Drain())
	assert.Equal(t, []TaskID{0}, order)

	require.NotEmpty(t, events)
	assert.Equal(t, StatusBadTask, events[0].Kind)
	assert.Equal(t, TaskID(3), events[0].TaskID)
}

func TestFinishedTaskIsNotPolledAgain(t *testing.T) {
	polls := 0
	task := TaskFunc(func(w Waker) Poll {
		polls++
		return Ready
	})
	ex, err := New([]Task{task}, NewReadyQueue(1, nil))
	require.NoError(t, err)

	ex.Wake(0)
	ex.Drain()
	ex.Wake(0)
	ex.Drain()
	assert.Equal(t, 1, polls)
}

func TestRunResumesOnWakeFromAnotherContext(t *testing.T) {
	idle := hal.NewIdler()
	defer idle.Close()

	var mu sync.Mutex
	polls := 0
	second := make(chan struct{})
	task := TaskFunc(func(w Waker) Poll {
		mu.Lock()
		polls++
		n := polls
		mu.Unlock()
		if n == 2 {
			close(second)
		}
		return Pending
	})

	q := NewReadyQueue(1, idle)
	ex, err := New([]Task{task}, q)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ex.Run(ctx) }()

	// simulated interrupt context
	go func() {
		time.Sleep(20 * time.Millisecond)
		q.Waker(0).Wake()
	}()

	select {
	case <-second:
	case <-time.After(2 * time.Second):
		t.Fatal("task was not polled after the wake")
	}
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestRunWithoutIdler(t *testing.T) {
	ex, err := New([]Task{TaskFunc(func(Waker) Poll { return Pending })}, NewReadyQueue(1, nil))
	require.NoError(t, err)
	assert.Error(t, ex.Run(context.Background()))
}

func TestCSVTrace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.csv")
	trace, err := NewCSVTrace(path)
	require.NoError(t, err)

	tasks := []Task{TaskFunc(func(Waker) Poll { return Pending })}
	ex, err := New(tasks, NewReadyQueue(1, nil),
		WithObserver(trace.Observe),
		WithNow(func() uint64 { return 42 }))
	require.NoError(t, err)

	ex.Prime()
	ex.Drain()
	require.NoError(t, trace.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "timestamp,tick,event,task_id,result", lines[0])
	assert.True(t, strings.HasSuffix(lines[1], ",42,Enqueued,0,Pending"), lines[1])
	assert.True(t, strings.HasSuffix(lines[2], ",42,Dispatch,0,Pending"), lines[2])
}

func TestCSVTraceSurvivesFatalHalt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.csv")
	trace, err := NewCSVTrace(path)
	require.NoError(t, err)
	defer trace.Close()

	q := NewReadyQueue(1, nil)
	tasks := []Task{TaskFunc(func(Waker) Poll { return Pending })}
	ex, err := New(tasks, q, WithObserver(trace.Observe))
	require.NoError(t, err)

	// prime fills the queue, one more wake halts
	ex.Prime()
	requireFatal(t, ErrReadyQueueFull, func() { q.Wake(5) })

	// nothing closed the trace, the events are already on disk
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), ",Enqueued,0,Pending")
	assert.NoError(t, trace.Err())
}

func TestStatusKindString(t *testing.T) {
	assert.Equal(t, "Dispatch", StatusDispatch.String())
	assert.Equal(t, "BadTask", StatusBadTask.String())
	assert.Equal(t, "Unknown", StatusKind(99).String())
	assert.Equal(t, "Ready", Ready.String())
}
