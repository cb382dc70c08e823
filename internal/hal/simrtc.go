package hal

import (
	"sync"
	"time"
)

// overflowLead is how far below the wrap point TriggerOverflow puts the counter.
const overflowLead = 16

// SimRTC simulates a wrapping RTC counter. Time only moves through Advance,
// either called directly (tests) or from the Start driver goroutine.
type SimRTC struct {
	mu       sync.Mutex
	width    uint
	mask     uint32
	counter  uint32
	compare  uint32
	running  bool
	evten    [numRTCEvents]bool
	inten    [numRTCEvents]bool
	events   [numRTCEvents]bool
	irq      *Controller
	stop     chan struct{} // non-nil while a Start driver runs
	driver   sync.WaitGroup
}

// NewSimRTC creates a stopped counter of the given width raising irq on IRQRTC0.
func NewSimRTC(width uint, irq *Controller) *SimRTC {
	if width == 0 || width > 32 {
		width = 24
	}
	return &SimRTC{
		width: width,
		mask:  uint32(uint64(1)<<width - 1),
		irq:   irq,
	}
}

func (r *SimRTC) Width() uint { return r.width }

func (r *SimRTC) Counter() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counter
}

func (r *SimRTC) EnableCounter() {
	r.mu.Lock()
	r.running = true
	r.mu.Unlock()
}

func (r *SimRTC) TriggerOverflow() {
	r.mu.Lock()
	r.counter = r.mask - (overflowLead - 1)
	r.mu.Unlock()
}

func (r *SimRTC) SetCompare(v uint32) {
	r.mu.Lock()
	r.compare = v & r.mask
	r.mu.Unlock()
}

// Compare returns the programmed compare value.
func (r *SimRTC) Compare() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.compare
}

func (r *SimRTC) EnableEvent(ev RTCEvent) {
	r.mu.Lock()
	r.evten[ev] = true
	r.mu.Unlock()
}

func (r *SimRTC) DisableEvent(ev RTCEvent) {
	r.mu.Lock()
	r.evten[ev] = false
	r.mu.Unlock()
}

// EventEnabled reports whether ev is routed.
func (r *SimRTC) EventEnabled(ev RTCEvent) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.evten[ev]
}

func (r *SimRTC) EnableInterrupt(ev RTCEvent) {
	r.mu.Lock()
	r.inten[ev] = true
	r.mu.Unlock()
}

func (r *SimRTC) IsEventTriggered(ev RTCEvent) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[ev]
}

func (r *SimRTC) ResetEvent(ev RTCEvent) {
	r.mu.Lock()
	r.events[ev] = false
	r.mu.Unlock()
}

// Advance moves the counter forward n ticks, stopping at every wrap and
// compare match to raise the interrupt before continuing. Must not be called
// inside a critical section.
func (r *SimRTC) Advance(n uint64) {
	for n > 0 {
		r.mu.Lock()
		if !r.running {
			r.mu.Unlock()
			return
		}

		period := uint64(r.mask) + 1
		step := period - uint64(r.counter) // ticks until wrap
		if r.evten[RTCCompare0] {
			d := uint64((r.compare - r.counter) & r.mask)
			if d == 0 {
				d = period
			}
			if d < step {
				step = d
			}
		}
		if step > n {
			step = n
		}

		next := uint64(r.counter) + step
		wrapped := next >= period
		r.counter = uint32(next) & r.mask
		n -= step

		raise := false
		if wrapped && r.evten[RTCOverflow] {
			r.events[RTCOverflow] = true
			raise = raise || r.inten[RTCOverflow]
		}
		if r.evten[RTCCompare0] && r.counter == r.compare {
			r.events[RTCCompare0] = true
			raise = raise || r.inten[RTCCompare0]
		}
		r.mu.Unlock()

		if raise && r.irq != nil {
			r.irq.Raise(IRQRTC0)
		}
	}
}

// Start free-runs the counter, advancing ticksPerStep every interval. A
// second Start while a driver runs is a no-op.
func (r *SimRTC) Start(interval time.Duration, ticksPerStep uint64) {
	r.mu.Lock()
	if r.stop != nil {
		r.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	r.stop = stop
	r.mu.Unlock()

	ticker := time.NewTicker(interval)
	r.driver.Add(1)
	go func() {
		defer r.driver.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.Advance(ticksPerStep)
			case <-stop:
				return
			}
		}
	}()
}

// Stop ends a Start driver and waits for its last step to finish. Must not
// be called from an interrupt handler.
func (r *SimRTC) Stop() {
	r.mu.Lock()
	stop := r.stop
	r.stop = nil
	r.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	r.driver.Wait()
}
