package hal

import "sync"

// SimGPIOTEChannels matches the nRF52 GPIOTE channel count.
const SimGPIOTEChannels = 8

type simChannel struct {
	configured bool
	pin        PinID
	pol        Polarity
	inten      bool
	event      bool
}

// SimGPIO simulates a GPIO port together with its GPIOTE peripheral.
type SimGPIO struct {
	mu       sync.Mutex
	levels   map[PinID]Level
	channels [SimGPIOTEChannels]simChannel
	irq      *Controller
}

// NewSimGPIO creates a port whose pins all idle high (pulled up buttons).
func NewSimGPIO(irq *Controller) *SimGPIO {
	return &SimGPIO{
		levels: make(map[PinID]Level),
		irq:    irq,
	}
}

func (g *SimGPIO) level(id PinID) Level {
	l, ok := g.levels[id]
	if !ok {
		return High
	}
	return l
}

// Level reads a pin.
func (g *SimGPIO) Level(id PinID) Level {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.level(id)
}

// Drive sets a pin level from outside (a button, a probe) and generates
// GPIOTE events for channels watching it. Must not be called inside a
// critical section.
func (g *SimGPIO) Drive(id PinID, l Level) {
	g.mu.Lock()
	prev := g.level(id)
	g.levels[id] = l
	raise := false
	if prev != l {
		for i := range g.channels {
			ch := &g.channels[i]
			if !ch.configured || ch.pin != id {
				continue
			}
			if ch.pol == PolarityToggle ||
				(ch.pol == PolarityLoToHi && l == High) ||
				(ch.pol == PolarityHiToLo && l == Low) {
				ch.event = true
				raise = raise || ch.inten
			}
		}
	}
	g.mu.Unlock()

	if raise && g.irq != nil {
		g.irq.Raise(IRQGPIOTE)
	}
}

func (g *SimGPIO) NumChannels() int { return SimGPIOTEChannels }

func (g *SimGPIO) ConfigureInput(ch int, pin PinID, pol Polarity) {
	g.mu.Lock()
	g.channels[ch] = simChannel{configured: true, pin: pin, pol: pol}
	g.mu.Unlock()
}

func (g *SimGPIO) EnableInterrupt(ch int) {
	g.mu.Lock()
	g.channels[ch].inten = true
	g.mu.Unlock()
}

func (g *SimGPIO) EventPending(ch int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.channels[ch].event
}

func (g *SimGPIO) ClearEvent(ch int) {
	g.mu.Lock()
	g.channels[ch].event = false
	g.mu.Unlock()
}

// Input returns an input view of a pin.
func (g *SimGPIO) Input(id PinID) InputPin {
	return simPin{g: g, id: id}
}

// Output returns an output view of a pin, initially driven to l.
func (g *SimGPIO) Output(id PinID, l Level) OutputPin {
	g.mu.Lock()
	g.levels[id] = l
	g.mu.Unlock()
	return simPin{g: g, id: id}
}

type simPin struct {
	g  *SimGPIO
	id PinID
}

func (p simPin) ID() PinID { return p.id }

func (p simPin) IsHigh() bool { return bool(p.g.Level(p.id)) }

func (p simPin) IsSetHigh() bool { return p.IsHigh() }

func (p simPin) Set(l Level) {
	p.g.mu.Lock()
	p.g.levels[p.id] = l
	p.g.mu.Unlock()
}

func (p simPin) Toggle() {
	p.g.mu.Lock()
	p.g.levels[p.id] = !p.g.level(p.id)
	p.g.mu.Unlock()
}
