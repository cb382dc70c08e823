// Package clock builds a wide monotonic tick count out of a narrow wrapping
// RTC counter and an overflow count advanced by the RTC interrupt.
package clock

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/lulu2002/async-embed/internal/hal"
	"github.com/rs/zerolog"
)

// ErrNotInitialized is the fatal error for a clock read before Init.
var ErrNotInitialized = errors.New("RTC not initialized")

// Ticker is the monotonic clock. The overflow count is written only by the
// RTC interrupt; the RTC itself is only reachable inside a critical section.
type Ticker struct {
	overflows atomic.Uint32
	width     atomic.Uint32
	rtc       *hal.Mutex[hal.RTC]
	log       zerolog.Logger
}

// Option configures a Ticker.
type Option func(*Ticker)

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(t *Ticker) { t.log = l }
}

// New returns an uninitialized clock.
func New(opts ...Option) *Ticker {
	t := &Ticker{
		rtc: hal.NewMutex[hal.RTC](nil),
		log: zerolog.Nop(),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Init starts the counter and enables the overflow interrupt, plus the
// compare interrupt used by the wakeup manager. With triggerOverflow the
// counter is pushed next to its wrap point to exercise the epoch path early.
// Must not be called inside a critical section.
func (t *Ticker) Init(rtc hal.RTC, triggerOverflow bool) {
	rtc.EnableCounter()

	if triggerOverflow {
		rtc.TriggerOverflow()
		for rtc.Counter() == 0 {
		}
	}

	rtc.EnableEvent(hal.RTCOverflow)
	rtc.EnableInterrupt(hal.RTCOverflow)
	rtc.EnableInterrupt(hal.RTCCompare0)

	hal.WithCS(func(cs hal.CS) {
		*t.rtc.Borrow(cs) = rtc
		t.width.Store(uint32(rtc.Width()))
	})

	t.log.Info().
		Uint("width", rtc.Width()).
		Bool("trigger_overflow", triggerOverflow).
		Uint32("counter", rtc.Counter()).
		Msg("clock initialized")
}

// Width is the hardware counter width in bits.
func (t *Ticker) Width() uint {
	w := t.width.Load()
	if w == 0 {
		panic(fmt.Errorf("clock width: %w", ErrNotInitialized))
	}
	return uint(w)
}

// Now returns the current logical time. The overflow count is read on both
// sides of the counter read and the read is retried when they differ, or
// when a wrap has happened that the interrupt has not yet accounted for.
func (t *Ticker) Now() Instant {
	width := t.Width()
	for {
		before := t.overflows.Load()
		var counter uint32
		var wrapPending bool
		hal.WithCS(func(cs hal.CS) {
			rtc := t.hw(cs)
			counter = rtc.Counter()
			wrapPending = rtc.IsEventTriggered(hal.RTCOverflow)
		})
		after := t.overflows.Load()

		if before == after && !wrapPending {
			return Instant(uint64(after)<<width | uint64(counter))
		}
	}
}

// OverflowCount is the number of counter wraps serviced so far.
func (t *Ticker) OverflowCount() uint32 {
	return t.overflows.Load()
}

// AdvanceOverflow records one counter wrap. Only the RTC interrupt calls it.
func (t *Ticker) AdvanceOverflow() {
	t.overflows.Add(1)
}

// WithHardware runs fn with exclusive access to the RTC.
func (t *Ticker) WithHardware(fn func(rtc hal.RTC)) {
	hal.WithCS(func(cs hal.CS) {
		fn(t.hw(cs))
	})
}

// WithHardwareCS is WithHardware for callers already inside a critical section.
func (t *Ticker) WithHardwareCS(cs hal.CS, fn func(rtc hal.RTC)) {
	fn(t.hw(cs))
}

// ServiceOverflow clears a pending overflow event and advances the epoch.
func (t *Ticker) ServiceOverflow(_ hal.CS, rtc hal.RTC) bool {
	if !rtc.IsEventTriggered(hal.RTCOverflow) {
		return false
	}
	rtc.ResetEvent(hal.RTCOverflow)
	t.AdvanceOverflow()
	return true
}

// OnInterrupt is the RTC handler when no wakeup manager shares the line.
func (t *Ticker) OnInterrupt() {
	hal.WithCS(func(cs hal.CS) {
		t.WithHardwareCS(cs, func(rtc hal.RTC) {
			t.ServiceOverflow(cs, rtc)
		})
	})
}

func (t *Ticker) hw(cs hal.CS) hal.RTC {
	rtc := *t.rtc.Borrow(cs)
	if rtc == nil {
		panic(ErrNotInitialized)
	}
	return rtc
}
