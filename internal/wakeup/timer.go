package wakeup

import (
	"sync/atomic"

	"github.com/lulu2002/async-embed/internal/clock"
	"github.com/lulu2002/async-embed/internal/sched"
)

// Timer resolves once the clock reaches its end time.
type Timer struct {
	m     *Manager
	start clock.Instant
	end   clock.Instant
	armed bool
	fired atomic.Bool
}

// NewTimer starts a timer that ends d ticks from now.
func (m *Manager) NewTimer(d clock.Duration) *Timer {
	now := m.ticker.Now()
	return &Timer{m: m, start: now, end: now.Add(d)}
}

// Elapsed is the time since the timer was started.
func (t *Timer) Elapsed() clock.Duration {
	return t.m.ticker.Now().Since(t.start)
}

// End is the instant the timer resolves at.
func (t *Timer) End() clock.Instant { return t.end }

// IsReady reports whether the end time has passed, without registering.
func (t *Timer) IsReady() bool {
	return t.m.ticker.Now() >= t.end
}

// Poll returns Ready once the end time has passed. Otherwise it makes sure a
// deadline for the polling task is pending and returns Pending. A timer that
// is polled again before its deadline is consumed does not register twice.
func (t *Timer) Poll(w sched.Waker) sched.Poll {
	if t.IsReady() {
		return sched.Ready
	}
	if !t.armed || t.fired.Load() {
		t.armed = true
		t.fired.Store(false)
		t.m.add(Entry{Deadline: t.end, Task: w.TaskID(), fired: &t.fired})
	}
	return sched.Pending
}
