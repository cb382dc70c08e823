package app

import (
	"testing"

	"github.com/lulu2002/async-embed/internal/clock"
	"github.com/lulu2002/async-embed/internal/gpiote"
	"github.com/lulu2002/async-embed/internal/hal"
	"github.com/lulu2002/async-embed/internal/mailbox"
	"github.com/lulu2002/async-embed/internal/sched"
	"github.com/lulu2002/async-embed/internal/wakeup"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	pinA       hal.PinID = 14
	pinSpeaker hal.PinID = 0
)

var colPins = [NumCols]hal.PinID{28, 11, 31, 37, 30}

type rig struct {
	rtc    *hal.SimRTC
	gpio   *hal.SimGPIO
	ticker *clock.Ticker
	ready  *sched.ReadyQueue
	timers *wakeup.Manager
	bridge *gpiote.Bridge
}

func newRig(t *testing.T) *rig {
	t.Helper()
	irq := hal.NewController(nil)
	r := &rig{
		rtc:    hal.NewSimRTC(24, irq),
		gpio:   hal.NewSimGPIO(irq),
		ticker: clock.New(),
		ready:  sched.NewReadyQueue(4, nil),
	}
	r.timers = wakeup.New(r.ticker, r.ready, 8)
	r.bridge = gpiote.NewBridge(r.gpio, r.ready)
	irq.Register(hal.IRQRTC0, r.timers.OnTimerInterrupt)
	irq.Register(hal.IRQGPIOTE, r.bridge.OnInterrupt)
	irq.Unmask(hal.IRQRTC0)
	irq.Unmask(hal.IRQGPIOTE)
	r.ticker.Init(r.rtc, false)
	return r
}

func (r *rig) executor(t *testing.T, tasks ...sched.Task) *sched.Executor {
	t.Helper()
	ex, err := sched.New(tasks, r.ready)
	require.NoError(t, err)
	ex.Prime()
	ex.Drain()
	return ex
}

// countingPin records toggles of an output.
type countingPin struct {
	hal.OutputPin
	toggles int
}

func (p *countingPin) Toggle() {
	p.toggles++
	p.OutputPin.Toggle()
}

func TestButtonDebounce(t *testing.T) {
	r := newRig(t)
	box := mailbox.New[Direction]()
	btn := NewButtonTask(gpiote.NewInputChannel(r.gpio.Input(pinA), r.bridge),
		r.timers, Left, clock.Millis(100), zerolog.Nop(), box.Sender())
	ex := r.executor(t, btn)

	r.gpio.Drive(pinA, hal.Low)
	ex.Drain()
	assert.Equal(t, 1, btn.Presses())
	d, ok := box.Receive()
	require.True(t, ok)
	assert.Equal(t, Left, d)

	// contact bounce inside the debounce window
	r.gpio.Drive(pinA, hal.High)
	r.gpio.Drive(pinA, hal.Low)
	ex.Drain()
	r.rtc.Advance(uint64(clock.Millis(100)) - 1)
	ex.Drain()
	assert.Equal(t, 1, btn.Presses())

	// debounce over, still held down
	r.rtc.Advance(1)
	ex.Drain()
	assert.Equal(t, 1, btn.Presses())

	r.gpio.Drive(pinA, hal.High)
	ex.Drain()
	r.gpio.Drive(pinA, hal.Low)
	ex.Drain()
	assert.Equal(t, 2, btn.Presses())
}

func TestButtonSendsToEverySender(t *testing.T) {
	r := newRig(t)
	led, tone := mailbox.New[Direction](), mailbox.New[Direction]()
	btn := NewButtonTask(gpiote.NewInputChannel(r.gpio.Input(pinA), r.bridge),
		r.timers, Right, clock.Millis(100), zerolog.Nop(), led.Sender(), tone.Sender())
	ex := r.executor(t, btn)

	r.gpio.Drive(pinA, hal.Low)
	ex.Drain()

	for _, box := range []*mailbox.Channel[Direction]{led, tone} {
		d, ok := box.Receive()
		require.True(t, ok)
		assert.Equal(t, Right, d)
	}
}

func outputs(r *rig) [NumCols]hal.OutputPin {
	var cols [NumCols]hal.OutputPin
	for i, id := range colPins {
		cols[i] = r.gpio.Output(id, hal.High)
	}
	return cols
}

func TestLedMatrixShiftWraps(t *testing.T) {
	r := newRig(t)
	m := NewLedMatrix(outputs(r), zerolog.Nop())

	m.Shift(Left)
	assert.Equal(t, 4, m.Active())
	m.Shift(Right)
	assert.Equal(t, 0, m.Active())
	m.Shift(Right)
	assert.Equal(t, 1, m.Active())

	m.Toggle()
	assert.True(t, m.Lit(1))
	m.Shift(Right)
	assert.False(t, m.Lit(1))
	assert.False(t, m.Lit(2))
}

func TestLedTaskBlinksAndShifts(t *testing.T) {
	r := newRig(t)
	m := NewLedMatrix(outputs(r), zerolog.Nop())
	box := mailbox.New[Direction]()
	blink := clock.Millis(500)
	task := NewLedTask(NewLedController(m, r.timers, blink), box.Receiver())
	ex := r.executor(t, task)

	assert.True(t, m.Lit(0), "first poll toggles on")

	r.rtc.Advance(uint64(blink))
	ex.Drain()
	assert.False(t, m.Lit(0))

	r.rtc.Advance(uint64(blink))
	ex.Drain()
	assert.True(t, m.Lit(0))

	box.Send(Right)
	ex.Drain()
	assert.Equal(t, 1, m.Active())
	assert.False(t, m.Lit(0))

	r.rtc.Advance(uint64(blink))
	ex.Drain()
	assert.True(t, m.Lit(1))
}

func TestSoundPeriod(t *testing.T) {
	assert.Equal(t, uint32(1136), Sound{FreqHz: 880}.Period())
	assert.Equal(t, uint32(2272), Sound{FreqHz: 440}.Period())
	assert.Equal(t, uint32(0), Sound{}.Period())
	assert.Equal(t, clock.Millis(50), Sound{FreqHz: 1, DurationMs: 50}.Duration())
}

func TestToneTaskPlaysAndStops(t *testing.T) {
	r := newRig(t)
	speaker := &countingPin{OutputPin: r.gpio.Output(pinSpeaker, hal.Low)}
	box := mailbox.New[Direction]()
	sounds := map[Direction]Sound{
		Left:  {FreqHz: 880, DurationMs: 10},
		Right: {FreqHz: 440, DurationMs: 10},
	}
	task := NewToneTask(speaker, r.timers, box.Receiver(), sounds, zerolog.Nop())
	ex := r.executor(t, task)
	assert.False(t, task.Playing())

	box.Send(Left)
	ex.Drain()
	require.True(t, task.Playing())
	assert.Equal(t, 1, speaker.toggles)

	for i := 0; i < 1000 && task.Playing(); i++ {
		r.rtc.Advance(1)
		ex.Drain()
	}
	assert.False(t, task.Playing())
	assert.Equal(t, 1, task.Played())
	assert.False(t, speaker.IsSetHigh())

	// 10 ms at 880 Hz is about 17 half periods
	assert.Greater(t, speaker.toggles, 10)
	assert.Less(t, speaker.toggles, 25)
	assert.Equal(t, 0, r.timers.Len())
}
