// Package gpiote turns GPIO edge interrupts into task wakes. Each input
// channel owns one hardware edge channel and one atomic wait slot.
package gpiote

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/lulu2002/async-embed/internal/hal"
	"github.com/lulu2002/async-embed/internal/sched"
	"github.com/rs/zerolog"
)

// NoWaiter marks an empty wait slot.
const NoWaiter = ^uint32(0)

// DefaultChannels is the pool size when none is configured.
const DefaultChannels = 2

// ErrNoChannel is the fatal error for a channel pool that is used up.
var ErrNoChannel = errors.New("no free edge channel")

// Bridge is the channel allocator and the shared edge interrupt handler.
type Bridge struct {
	hw       *hal.Mutex[hal.GPIOTE]
	notifier sched.Notifier
	slots    []atomic.Uint32
	next     atomic.Uint32
	log      zerolog.Logger
}

// Option configures a Bridge.
type Option func(*bridgeOptions)

type bridgeOptions struct {
	channels int
	log      zerolog.Logger
}

// WithChannels sets the pool size. It is capped at what the hardware has.
func WithChannels(n int) Option {
	return func(o *bridgeOptions) { o.channels = n }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *bridgeOptions) { o.log = l }
}

// NewBridge creates a bridge over hw that wakes tasks through n.
func NewBridge(hw hal.GPIOTE, n sched.Notifier, opts ...Option) *Bridge {
	o := bridgeOptions{channels: DefaultChannels, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.channels < 1 {
		o.channels = DefaultChannels
	}
	if avail := hw.NumChannels(); o.channels > avail {
		o.channels = avail
	}

	b := &Bridge{
		hw:       hal.NewMutex(hw),
		notifier: n,
		slots:    make([]atomic.Uint32, o.channels),
		log:      o.log,
	}
	for i := range b.slots {
		b.slots[i].Store(NoWaiter)
	}
	return b
}

// Channels is the pool size.
func (b *Bridge) Channels() int { return len(b.slots) }

// Allocated is the number of channels handed out.
func (b *Bridge) Allocated() int {
	n := int(b.next.Load())
	if n > len(b.slots) {
		n = len(b.slots)
	}
	return n
}

func (b *Bridge) claim(pin hal.PinID) int {
	ch := int(b.next.Add(1) - 1)
	if ch >= len(b.slots) {
		panic(fmt.Errorf("%w: pin %d wants channel %d of %d", ErrNoChannel, pin, ch, len(b.slots)))
	}
	hal.WithCS(func(cs hal.CS) {
		hw := *b.hw.Borrow(cs)
		hw.ConfigureInput(ch, pin, hal.PolarityToggle)
		hw.EnableInterrupt(ch)
	})
	b.log.Debug().Int("channel", ch).Uint8("pin", uint8(pin)).Msg("edge channel claimed")
	return ch
}

// OnInterrupt is the edge interrupt handler shared by every channel. Each
// pending event is cleared and the channel's waiter, if any, is woken.
func (b *Bridge) OnInterrupt() {
	hal.WithCS(func(cs hal.CS) {
		hw := *b.hw.Borrow(cs)
		for ch := range b.slots {
			if !hw.EventPending(ch) {
				continue
			}
			hw.ClearEvent(ch)
			id := b.slots[ch].Swap(NoWaiter)
			if id == NoWaiter {
				b.log.Trace().Int("channel", ch).Msg("edge with no waiter")
				continue
			}
			b.notifier.Wake(sched.TaskID(id))
		}
	})
}
