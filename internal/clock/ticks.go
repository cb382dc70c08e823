package clock

import "time"

// TickHz is the RTC input frequency.
const TickHz = 32768

// Instant is an absolute logical time in ticks since boot.
type Instant uint64

// Duration is a span of ticks.
type Duration uint64

// Millis converts milliseconds to ticks, rounding up so a timer never
// expires early.
func Millis(ms uint64) Duration {
	return Duration((ms*TickHz + 999) / 1000)
}

// Micros converts microseconds to ticks, rounding up.
func Micros(us uint64) Duration {
	return Duration((us*TickHz + 999_999) / 1_000_000)
}

// FromStd converts a time.Duration to ticks, rounding up. Negative is zero.
func FromStd(d time.Duration) Duration {
	if d <= 0 {
		return 0
	}
	return Micros(uint64((d + time.Microsecond - 1) / time.Microsecond))
}

// Std converts ticks to a time.Duration, truncating.
func (d Duration) Std() time.Duration {
	return time.Duration(uint64(d) * uint64(time.Second) / TickHz)
}

func (i Instant) Add(d Duration) Instant { return i + Instant(d) }

// Sub returns i-j, or zero when j is later.
func (i Instant) Sub(j Instant) Duration {
	if j >= i {
		return 0
	}
	return Duration(i - j)
}

// Since is the time elapsed from start to i, zero if start is later.
func (i Instant) Since(start Instant) Duration { return i.Sub(start) }

// Millis returns the instant as milliseconds since boot.
func (i Instant) Millis() uint64 {
	return uint64(i) * 1000 / TickHz
}

// Epoch is the overflow count this instant falls in for a counter of width bits.
func (i Instant) Epoch(width uint) uint32 {
	return uint32(uint64(i) >> width)
}

// Low is the counter value of this instant for a counter of width bits.
func (i Instant) Low(width uint) uint32 {
	return uint32(uint64(i) & (uint64(1)<<width - 1))
}
