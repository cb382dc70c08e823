// Package app holds the firmware's tasks: two debounced buttons, a blinking
// LED column that the buttons move, and a tone player.
package app

import (
	"github.com/lulu2002/async-embed/internal/clock"
	"github.com/lulu2002/async-embed/internal/gpiote"
	"github.com/lulu2002/async-embed/internal/hal"
	"github.com/lulu2002/async-embed/internal/mailbox"
	"github.com/lulu2002/async-embed/internal/sched"
	"github.com/lulu2002/async-embed/internal/wakeup"
	"github.com/rs/zerolog"
)

// Direction is what a button press asks for.
type Direction uint8

const (
	Left Direction = iota
	Right
)

func (d Direction) String() string {
	switch d {
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return "unknown"
	}
}

type buttonState uint8

const (
	waitForPress buttonState = iota
	debounce
	waitForRelease
)

// ButtonTask reports presses of an active-low button. After a press it
// ignores the pin for the debounce period, then waits for the release.
type ButtonTask struct {
	input    *gpiote.InputChannel
	timers   *wakeup.Manager
	debounce clock.Duration
	dir      Direction
	senders  []mailbox.Sender[Direction]

	state   buttonState
	timer   *wakeup.Timer
	presses int
	log     zerolog.Logger
}

// NewButtonTask creates a button task sending dir to every sender on press.
func NewButtonTask(input *gpiote.InputChannel, timers *wakeup.Manager, dir Direction,
	debounce clock.Duration, log zerolog.Logger, senders ...mailbox.Sender[Direction]) *ButtonTask {
	return &ButtonTask{
		input:    input,
		timers:   timers,
		debounce: debounce,
		dir:      dir,
		senders:  senders,
		log:      log,
	}
}

// Presses is the number of presses reported so far.
func (b *ButtonTask) Presses() int { return b.presses }

func (b *ButtonTask) Poll(w sched.Waker) sched.Poll {
	for {
		switch b.state {
		case waitForPress:
			b.input.SetReadyState(hal.Low)
			if b.input.Poll(w) == sched.Pending {
				return sched.Pending
			}
			b.presses++
			b.log.Info().Stringer("direction", b.dir).Int("presses", b.presses).Msg("button pressed")
			for _, s := range b.senders {
				s.Send(b.dir)
			}
			b.timer = b.timers.NewTimer(b.debounce)
			b.state = debounce

		case debounce:
			if b.timer.Poll(w) == sched.Pending {
				return sched.Pending
			}
			b.timer = nil
			b.state = waitForRelease

		case waitForRelease:
			b.input.SetReadyState(hal.High)
			if b.input.Poll(w) == sched.Pending {
				return sched.Pending
			}
			b.log.Debug().Stringer("direction", b.dir).Msg("button released")
			b.state = waitForPress
		}
	}
}
