package hal

// Level is a digital logic level.
type Level bool

const (
	Low  Level = false
	High Level = true
)

func (l Level) String() string {
	if l {
		return "high"
	}
	return "low"
}

// PinID identifies a GPIO pin.
type PinID uint8

// InputPin reads a pin level.
type InputPin interface {
	ID() PinID
	IsHigh() bool
}

// OutputPin drives a pin level.
type OutputPin interface {
	ID() PinID
	Set(l Level)
	Toggle()
	IsSetHigh() bool
}

// Polarity selects which transitions generate a GPIOTE event.
type Polarity uint8

const (
	PolarityLoToHi Polarity = iota + 1
	PolarityHiToLo
	PolarityToggle
)

// GPIOTE is the edge-event peripheral: a small fixed pool of channels, each
// watching one pin, sharing one interrupt line.
type GPIOTE interface {
	NumChannels() int
	ConfigureInput(ch int, pin PinID, pol Polarity)
	EnableInterrupt(ch int)
	EventPending(ch int) bool
	ClearEvent(ch int)
}
