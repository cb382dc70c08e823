// internal/sched/readyqueue.go

package sched

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/lulu2002/async-embed/internal/hal"
	"github.com/rs/zerolog"
)

// ErrReadyQueueFull is the fatal error for a wake that does not fit.
var ErrReadyQueueFull = errors.New("task queue full")

type slot struct {
	seq atomic.Uint64
	id  TaskID
}

// ReadyQueue is a bounded lock-free FIFO of task identities (sequence-numbered
// ring, safe for any number of producers; one consumer in practice). Each
// in-range identity is queued at most once until it is dequeued.
type ReadyQueue struct {
	slots  []slot
	head   atomic.Uint64
	tail   atomic.Uint64
	queued []atomic.Bool
	idle   hal.Idler
	log    zerolog.Logger
}

// QueueOption configures a ReadyQueue.
type QueueOption func(*ReadyQueue)

// WithQueueLogger sets the logger.
func WithQueueLogger(l zerolog.Logger) QueueOption {
	return func(q *ReadyQueue) { q.log = l }
}

// NewReadyQueue creates a queue of the given capacity. idle, if not nil, is
// notified on every wake so an idling executor resumes.
func NewReadyQueue(capacity int, idle hal.Idler, opts ...QueueOption) *ReadyQueue {
	if capacity < 1 {
		capacity = 1
	}
	q := &ReadyQueue{
		slots:  make([]slot, capacity),
		queued: make([]atomic.Bool, capacity),
		idle:   idle,
		log:    zerolog.Nop(),
	}
	for i := range q.slots {
		q.slots[i].seq.Store(uint64(i))
	}
	for _, o := range opts {
		o(q)
	}
	return q
}

// Cap is the queue capacity.
func (q *ReadyQueue) Cap() int { return len(q.slots) }

// Len is a snapshot of the number of queued identities.
func (q *ReadyQueue) Len() int {
	head := q.head.Load()
	return int(q.tail.Load() - head)
}

// Waker returns a waker for id.
func (q *ReadyQueue) Waker(id TaskID) Waker {
	return Waker{id: id, ready: q}
}

// Wake enqueues id unless it is already queued. Safe from interrupt and poll
// context. A full queue is fatal: a dropped wake would stall the task forever.
func (q *ReadyQueue) Wake(id TaskID) {
	if int(id) < len(q.queued) && !q.queued[id].CompareAndSwap(false, true) {
		return
	}
	if !q.enqueue(id) {
		panic(fmt.Errorf("%w: can't add task %d", ErrReadyQueueFull, id))
	}
	q.log.Debug().Uint32("task", uint32(id)).Msg("waking task")
	if q.idle != nil {
		q.idle.Notify()
	}
}

// Dequeue pops the oldest identity.
func (q *ReadyQueue) Dequeue() (TaskID, bool) {
	id, ok := q.dequeue()
	if ok && int(id) < len(q.queued) {
		q.queued[id].Store(false)
	}
	return id, ok
}

func (q *ReadyQueue) enqueue(id TaskID) bool {
	n := uint64(len(q.slots))
	for {
		pos := q.tail.Load()
		s := &q.slots[pos%n]
		seq := s.seq.Load()
		switch diff := int64(seq) - int64(pos); {
		case diff == 0:
			if q.tail.CompareAndSwap(pos, pos+1) {
				s.id = id
				s.seq.Store(pos + 1)
				return true
			}
		case diff < 0:
			return false
		}
	}
}

func (q *ReadyQueue) dequeue() (TaskID, bool) {
	n := uint64(len(q.slots))
	for {
		pos := q.head.Load()
		s := &q.slots[pos%n]
		seq := s.seq.Load()
		switch diff := int64(seq) - int64(pos+1); {
		case diff == 0:
			if q.head.CompareAndSwap(pos, pos+1) {
				id := s.id
				s.seq.Store(pos + n)
				return id, true
			}
		case diff < 0:
			return 0, false
		}
	}
}
