package gpiote

import (
	"github.com/lulu2002/async-embed/internal/hal"
	"github.com/lulu2002/async-embed/internal/sched"
)

// InputChannel waits for a pin to reach a level.
type InputChannel struct {
	pin    hal.InputPin
	bridge *Bridge
	ch     int
	ready  hal.Level
}

// NewInputChannel claims the next edge channel for pin, watching both edges.
// Running out of channels is fatal.
func NewInputChannel(pin hal.InputPin, b *Bridge) *InputChannel {
	return &InputChannel{
		pin:    pin,
		bridge: b,
		ch:     b.claim(pin.ID()),
		ready:  hal.Low,
	}
}

// Channel is the hardware channel index.
func (c *InputChannel) Channel() int { return c.ch }

// SetReadyState selects the level Poll waits for.
func (c *InputChannel) SetReadyState(l hal.Level) { c.ready = l }

// Poll waits for the level set with SetReadyState.
func (c *InputChannel) Poll(w sched.Waker) sched.Poll {
	return c.WaitFor(w, c.ready)
}

// WaitFor returns Ready when the pin is at level. Otherwise the task is left
// in the channel's wait slot and the next edge wakes it. The slot is written
// before the level is read, so an edge landing in between still wakes. A slot
// held by another task is only taken over when this task has to wait.
func (c *InputChannel) WaitFor(w sched.Waker, level hal.Level) sched.Poll {
	id := uint32(w.TaskID())
	slot := &c.bridge.slots[c.ch]

	if prev := slot.Load(); prev != NoWaiter && prev != id {
		if c.atLevel(level) {
			return sched.Ready
		}
		c.bridge.log.Warn().
			Int("channel", c.ch).
			Uint32("previous", prev).
			Uint32("task", id).
			Msg("edge waiter replaced")
	}
	slot.Store(id)

	if c.atLevel(level) {
		// withdraw; if the handler beat us to it the extra wake is harmless
		slot.CompareAndSwap(id, NoWaiter)
		return sched.Ready
	}
	return sched.Pending
}

func (c *InputChannel) atLevel(level hal.Level) bool {
	return hal.Level(c.pin.IsHigh()) == level
}

// Waiter reports the task parked on this channel, if any.
func (c *InputChannel) Waiter() (sched.TaskID, bool) {
	id := c.bridge.slots[c.ch].Load()
	return sched.TaskID(id), id != NoWaiter
}
