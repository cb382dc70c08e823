// Package mailbox is a single-slot inter-task channel where the latest value
// wins. Sending never blocks and never fails.
package mailbox

import (
	"sync/atomic"

	"github.com/lulu2002/async-embed/internal/sched"
)

// Channel holds at most one unconsumed value.
type Channel[T any] struct {
	item   atomic.Pointer[T]
	waiter atomic.Pointer[sched.Waker]
}

// New creates an empty channel.
func New[T any]() *Channel[T] {
	return &Channel[T]{}
}

// Sender returns the sending end.
func (c *Channel[T]) Sender() Sender[T] { return Sender[T]{c: c} }

// Receiver returns the receiving end.
func (c *Channel[T]) Receiver() Receiver[T] { return Receiver[T]{c: c} }

// Send stores v, replacing any value not yet received, and wakes a parked
// receiver.
func (c *Channel[T]) Send(v T) {
	c.item.Store(&v)
	if w := c.waiter.Swap(nil); w != nil {
		w.Wake()
	}
}

// Receive takes the value, leaving the slot empty.
func (c *Channel[T]) Receive() (T, bool) {
	p := c.item.Swap(nil)
	if p == nil {
		var zero T
		return zero, false
	}
	return *p, true
}

// Sender is the sending end of a Channel. Copies share the channel.
type Sender[T any] struct {
	c *Channel[T]
}

func (s Sender[T]) Send(v T) { s.c.Send(v) }

// Receiver is the receiving end of a Channel.
type Receiver[T any] struct {
	c *Channel[T]
}

func (r Receiver[T]) Receive() (T, bool) { return r.c.Receive() }

// Poll returns the value when one is present. Otherwise w is parked on the
// channel and the next Send wakes it.
func (r Receiver[T]) Poll(w sched.Waker) (T, sched.Poll) {
	if v, ok := r.c.Receive(); ok {
		return v, sched.Ready
	}
	parked := &w
	r.c.waiter.Store(parked)
	// a Send may have landed before the waiter was parked
	if v, ok := r.c.Receive(); ok {
		r.c.waiter.CompareAndSwap(parked, nil)
		return v, sched.Ready
	}
	return *new(T), sched.Pending
}
