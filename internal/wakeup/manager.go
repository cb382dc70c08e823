// Package wakeup multiplexes any number of pending task deadlines onto the
// single RTC compare channel.
package wakeup

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/emirpasic/gods/queues/priorityqueue"
	"github.com/lulu2002/async-embed/internal/clock"
	"github.com/lulu2002/async-embed/internal/hal"
	"github.com/lulu2002/async-embed/internal/sched"
	"github.com/rs/zerolog"
)

// ErrDeadlinesFull is the fatal error for a deadline that does not fit.
var ErrDeadlinesFull = errors.New("deadline dropped")

// Entry is one pending wakeup.
type Entry struct {
	Deadline clock.Instant
	Task     sched.TaskID

	fired *atomic.Bool // set when the entry is consumed, if non-nil
}

// byDeadline orders entries earliest first; ties are left to the heap.
func byDeadline(a, b interface{}) int {
	da, db := a.(Entry).Deadline, b.(Entry).Deadline
	switch {
	case da < db:
		return -1
	case da > db:
		return 1
	default:
		return 0
	}
}

// Manager owns the deadline heap and the RTC compare channel.
type Manager struct {
	ticker    *clock.Ticker
	notifier  sched.Notifier
	capacity  int
	deadlines *hal.Mutex[*priorityqueue.Queue]
	log       zerolog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// New creates a manager holding at most capacity deadlines.
func New(t *clock.Ticker, n sched.Notifier, capacity int, opts ...Option) *Manager {
	if capacity < 1 {
		capacity = 1
	}
	m := &Manager{
		ticker:    t,
		notifier:  n,
		capacity:  capacity,
		deadlines: hal.NewMutex(priorityqueue.NewWith(byDeadline)),
		log:       zerolog.Nop(),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Cap is the deadline capacity.
func (m *Manager) Cap() int { return m.capacity }

// Len is the number of pending deadlines.
func (m *Manager) Len() int {
	var n int
	hal.WithCS(func(cs hal.CS) {
		n = (*m.deadlines.Borrow(cs)).Size()
	})
	return n
}

// AddDeadline registers a wakeup for task id at deadline. When it becomes the
// earliest pending deadline the compare channel is reprogrammed in the same
// critical section, and a deadline that has already passed wakes the task
// right away.
func (m *Manager) AddDeadline(deadline clock.Instant, id sched.TaskID) {
	m.add(Entry{Deadline: deadline, Task: id})
}

func (m *Manager) add(e Entry) {
	deadline, id := e.Deadline, e.Task
	hal.WithCS(func(cs hal.CS) {
		q := *m.deadlines.Borrow(cs)

		earliest := true
		if head, ok := q.Peek(); ok {
			earliest = deadline < head.(Entry).Deadline
		}

		if q.Size() >= m.capacity {
			panic(fmt.Errorf("%w for task %d", ErrDeadlinesFull, id))
		}
		q.Enqueue(e)
		m.log.Debug().
			Uint64("deadline", uint64(deadline)).
			Uint32("task", uint32(id)).
			Msg("deadline added")

		if earliest {
			m.ticker.WithHardwareCS(cs, func(rtc hal.RTC) {
				m.schedule(q, rtc)
			})
		}
	})
}

// OnTimerInterrupt is the RTC interrupt handler: it accounts for a counter
// wrap, acknowledges a compare match and reprograms the compare channel.
func (m *Manager) OnTimerInterrupt() {
	hal.WithCS(func(cs hal.CS) {
		m.ticker.WithHardwareCS(cs, func(rtc hal.RTC) {
			if m.ticker.ServiceOverflow(cs, rtc) {
				m.log.Trace().Uint32("epoch", m.ticker.OverflowCount()).Msg("counter overflow")
			}
			if rtc.IsEventTriggered(hal.RTCCompare0) {
				rtc.ResetEvent(hal.RTCCompare0)
			}
			m.schedule(*m.deadlines.Borrow(cs), rtc)
		})
	})
}

// schedule wakes every task whose deadline has passed and arms the compare
// channel for the earliest remaining one in the current epoch. Deadlines in a
// later epoch are picked up when the overflow interrupt runs this again.
// Caller holds the critical section.
func (m *Manager) schedule(q *priorityqueue.Queue, rtc hal.RTC) {
	width := rtc.Width()
	for {
		v, ok := q.Peek()
		if !ok {
			rtc.DisableEvent(hal.RTCCompare0)
			return
		}
		head := v.(Entry)

		epoch := head.Deadline.Epoch(width)
		current := m.ticker.OverflowCount()
		if epoch > current {
			rtc.DisableEvent(hal.RTCCompare0)
			return
		}

		if epoch == current {
			counter := head.Deadline.Low(width)
			// compare needs at least two ticks of headroom to be sure to match
			if uint64(counter) > uint64(rtc.Counter())+1 {
				rtc.SetCompare(counter)
				rtc.EnableEvent(hal.RTCCompare0)
				// the counter keeps running while we program it
				if counter > rtc.Counter() {
					m.log.Trace().
						Uint32("compare", counter).
						Uint32("task", uint32(head.Task)).
						Msg("compare armed")
					return
				}
			}
		}

		q.Dequeue()
		if head.fired != nil {
			head.fired.Store(true)
		}
		m.log.Debug().
			Uint64("deadline", uint64(head.Deadline)).
			Uint32("task", uint32(head.Task)).
			Msg("deadline elapsed")
		m.notifier.Wake(head.Task)
	}
}
