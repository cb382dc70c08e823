package hal

// RTCEvent names an RTC event source.
type RTCEvent uint8

const (
	RTCOverflow RTCEvent = iota
	RTCCompare0
	numRTCEvents
)

func (e RTCEvent) String() string {
	switch e {
	case RTCOverflow:
		return "overflow"
	case RTCCompare0:
		return "compare0"
	default:
		return "unknown"
	}
}

// RTC is a narrow wrapping counter with an overflow event and one compare
// channel, the shape of the nRF52 RTC peripheral.
type RTC interface {
	// Width is the counter width in bits.
	Width() uint
	Counter() uint32
	EnableCounter()
	// TriggerOverflow moves the counter close to its wrap point.
	TriggerOverflow()
	SetCompare(v uint32)
	EnableEvent(ev RTCEvent)
	DisableEvent(ev RTCEvent)
	EnableInterrupt(ev RTCEvent)
	IsEventTriggered(ev RTCEvent) bool
	ResetEvent(ev RTCEvent)
}
