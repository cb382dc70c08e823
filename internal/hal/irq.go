package hal

import "sync"

// Line identifies an interrupt request line.
type Line uint8

const (
	IRQRTC0 Line = iota
	IRQGPIOTE
	numLines
)

func (l Line) String() string {
	switch l {
	case IRQRTC0:
		return "RTC0"
	case IRQGPIOTE:
		return "GPIOTE"
	default:
		return "UNKNOWN"
	}
}

// Controller is the simulated interrupt controller. Handlers run on the
// goroutine that raises the line, one at a time, and every taken interrupt
// ends a pending idle wait.
type Controller struct {
	mu       sync.Mutex // serializes handlers (single priority level)
	state    sync.Mutex // protects the fields below
	handlers [numLines]func()
	unmasked [numLines]bool
	pending  [numLines]bool
	idle     Idler
}

// NewController creates a controller that notifies idle after each interrupt.
func NewController(idle Idler) *Controller {
	return &Controller{idle: idle}
}

// Register installs the handler for a line.
func (c *Controller) Register(l Line, h func()) {
	c.state.Lock()
	c.handlers[l] = h
	c.state.Unlock()
}

// Unmask enables delivery on a line and runs it if it was left pending.
func (c *Controller) Unmask(l Line) {
	c.state.Lock()
	c.unmasked[l] = true
	run := c.pending[l]
	c.pending[l] = false
	c.state.Unlock()

	if run {
		c.Raise(l)
	}
}

// Mask disables delivery on a line; raises while masked stay pending.
func (c *Controller) Mask(l Line) {
	c.state.Lock()
	c.unmasked[l] = false
	c.state.Unlock()
}

// Raise requests an interrupt on l.
func (c *Controller) Raise(l Line) {
	c.state.Lock()
	h := c.handlers[l]
	if !c.unmasked[l] || h == nil {
		c.pending[l] = true
		c.state.Unlock()
		return
	}
	c.state.Unlock()

	c.mu.Lock()
	h()
	c.mu.Unlock()

	if c.idle != nil {
		c.idle.Notify()
	}
}
