package app

import (
	"github.com/lulu2002/async-embed/internal/clock"
	"github.com/lulu2002/async-embed/internal/hal"
	"github.com/lulu2002/async-embed/internal/mailbox"
	"github.com/lulu2002/async-embed/internal/sched"
	"github.com/lulu2002/async-embed/internal/wakeup"
	"github.com/rs/zerolog"
)

// NumCols is the LED matrix column count.
const NumCols = 5

// LedOperator is what the controller drives.
type LedOperator interface {
	Toggle()
	Shift(d Direction)
}

// LedMatrix blinks one column of an active-low LED matrix.
type LedMatrix struct {
	cols   [NumCols]hal.OutputPin
	active int
	log    zerolog.Logger
}

// NewLedMatrix takes the column pins, which should start high (off).
func NewLedMatrix(cols [NumCols]hal.OutputPin, log zerolog.Logger) *LedMatrix {
	return &LedMatrix{cols: cols, log: log}
}

// Active is the index of the blinking column.
func (m *LedMatrix) Active() int { return m.active }

// Lit reports whether column i is on.
func (m *LedMatrix) Lit(i int) bool { return !m.cols[i].IsSetHigh() }

func (m *LedMatrix) Toggle() {
	m.log.Debug().Int("col", m.active).Msg("blinking LED")
	m.cols[m.active].Toggle()
}

// Shift turns the active column off and moves one step, wrapping around.
func (m *LedMatrix) Shift(d Direction) {
	m.cols[m.active].Set(hal.High)
	switch d {
	case Left:
		m.active = (m.active + NumCols - 1) % NumCols
	case Right:
		m.active = (m.active + 1) % NumCols
	}
	m.cols[m.active].Set(hal.High)
	m.log.Info().Stringer("direction", d).Int("col", m.active).Msg("LED shifted")
}

type ledState uint8

const (
	ledToggle ledState = iota
	ledWait
)

// LedController toggles the operator once per blink period.
type LedController struct {
	op     LedOperator
	timers *wakeup.Manager
	blink  clock.Duration
	state  ledState
	timer  *wakeup.Timer
}

// NewLedController creates a controller blinking op every blink ticks.
func NewLedController(op LedOperator, timers *wakeup.Manager, blink clock.Duration) *LedController {
	return &LedController{op: op, timers: timers, blink: blink}
}

func (c *LedController) Poll(w sched.Waker) sched.Poll {
	for {
		switch c.state {
		case ledToggle:
			c.op.Toggle()
			c.timer = c.timers.NewTimer(c.blink)
			c.state = ledWait
		case ledWait:
			if c.timer.Poll(w) == sched.Pending {
				return sched.Pending
			}
			c.state = ledToggle
		}
	}
}

func (c *LedController) Shift(d Direction) { c.op.Shift(d) }

// LedTask moves the blinking column on every direction it receives.
type LedTask struct {
	controller *LedController
	rx         mailbox.Receiver[Direction]
}

func NewLedTask(c *LedController, rx mailbox.Receiver[Direction]) *LedTask {
	return &LedTask{controller: c, rx: rx}
}

func (t *LedTask) Poll(w sched.Waker) sched.Poll {
	if d, p := t.rx.Poll(w); p == sched.Ready {
		t.controller.Shift(d)
	}
	return t.controller.Poll(w)
}
