// Package board brings up the firmware on simulated hardware: RTC, GPIO and
// GPIOTE peripherals, the interrupt controller and the four tasks.
package board

import (
	"context"
	"fmt"
	"time"

	"github.com/lulu2002/async-embed/internal/app"
	"github.com/lulu2002/async-embed/internal/clock"
	"github.com/lulu2002/async-embed/internal/config"
	"github.com/lulu2002/async-embed/internal/gpiote"
	"github.com/lulu2002/async-embed/internal/hal"
	"github.com/lulu2002/async-embed/internal/mailbox"
	"github.com/lulu2002/async-embed/internal/sched"
	"github.com/lulu2002/async-embed/internal/wakeup"
	"github.com/rs/zerolog"
)

// Button names a push button.
type Button string

const (
	ButtonA Button = "a"
	ButtonB Button = "b"
)

// micro:bit v2 pin map
const (
	PinButtonA hal.PinID = 14
	PinButtonB hal.PinID = 23
	PinSpeaker hal.PinID = 0
	PinRow1    hal.PinID = 21
)

// ColPins are the LED matrix column pins, P0.28 P0.11 P0.31 P1.05 P0.30.
var ColPins = [app.NumCols]hal.PinID{28, 11, 31, 37, 30}

// Task identities, in executor order.
const (
	TaskLED sched.TaskID = iota
	TaskButtonA
	TaskButtonB
	TaskTone
	numTasks
)

// Sim is a booted simulated board.
type Sim struct {
	cfg config.Config
	log zerolog.Logger

	Idle   hal.Idler
	IRQ    *hal.Controller
	RTC    *hal.SimRTC
	GPIO   *hal.SimGPIO
	Clock  *clock.Ticker
	Ready  *sched.ReadyQueue
	Timers *wakeup.Manager
	Edges  *gpiote.Bridge

	Matrix   *app.LedMatrix
	ButtonA  *app.ButtonTask
	ButtonB  *app.ButtonTask
	Tone     *app.ToneTask
	Executor *sched.Executor
}

// Stats is a summary of what the firmware did.
type Stats struct {
	Now       clock.Instant
	Overflows uint32
	PressesA  int
	PressesB  int
	ActiveCol int
	Tones     int
}

// NewSim wires every component the way board bring-up does on the target.
// Extra executor options (observers) are passed through.
func NewSim(cfg config.Config, log zerolog.Logger, opts ...sched.Option) (*Sim, error) {
	s := &Sim{cfg: cfg, log: log}

	s.Idle = hal.NewIdler()
	s.IRQ = hal.NewController(s.Idle)
	s.RTC = hal.NewSimRTC(uint(cfg.CounterBits), s.IRQ)
	s.GPIO = hal.NewSimGPIO(s.IRQ)

	s.Clock = clock.New(clock.WithLogger(log.With().Str("component", "clock").Logger()))
	s.Ready = sched.NewReadyQueue(cfg.ReadyCapacity, s.Idle,
		sched.WithQueueLogger(log.With().Str("component", "ready").Logger()))
	s.Timers = wakeup.New(s.Clock, s.Ready, cfg.MaxDeadlines,
		wakeup.WithLogger(log.With().Str("component", "wakeup").Logger()))
	s.Edges = gpiote.NewBridge(s.GPIO, s.Ready,
		gpiote.WithChannels(cfg.EdgeChannels),
		gpiote.WithLogger(log.With().Str("component", "gpiote").Logger()))

	s.IRQ.Register(hal.IRQRTC0, s.Timers.OnTimerInterrupt)
	s.IRQ.Register(hal.IRQGPIOTE, s.Edges.OnInterrupt)
	s.IRQ.Unmask(hal.IRQRTC0)
	s.Clock.Init(s.RTC, cfg.TriggerOverflow)

	s.GPIO.Output(PinRow1, hal.High)
	var cols [app.NumCols]hal.OutputPin
	for i, id := range ColPins {
		cols[i] = s.GPIO.Output(id, hal.High)
	}
	appLog := log.With().Str("component", "app").Logger()
	s.Matrix = app.NewLedMatrix(cols, appLog)

	ledBox := mailbox.New[app.Direction]()
	toneBox := mailbox.New[app.Direction]()
	debounce := clock.Millis(uint64(cfg.DebounceMS))

	s.ButtonA = app.NewButtonTask(gpiote.NewInputChannel(s.GPIO.Input(PinButtonA), s.Edges),
		s.Timers, app.Left, debounce, appLog, ledBox.Sender(), toneBox.Sender())
	s.ButtonB = app.NewButtonTask(gpiote.NewInputChannel(s.GPIO.Input(PinButtonB), s.Edges),
		s.Timers, app.Right, debounce, appLog, ledBox.Sender(), toneBox.Sender())
	s.IRQ.Unmask(hal.IRQGPIOTE)

	sounds := map[app.Direction]app.Sound{
		app.Left:  {FreqHz: uint32(cfg.Tone.LeftHz), DurationMs: uint32(cfg.Tone.DurationMS)},
		app.Right: {FreqHz: uint32(cfg.Tone.RightHz), DurationMs: uint32(cfg.Tone.DurationMS)},
	}
	s.Tone = app.NewToneTask(s.GPIO.Output(PinSpeaker, hal.Low), s.Timers, toneBox.Receiver(), sounds, appLog)

	led := app.NewLedTask(app.NewLedController(s.Matrix, s.Timers, clock.Millis(uint64(cfg.BlinkMS))), ledBox.Receiver())

	tasks := make([]sched.Task, numTasks)
	tasks[TaskLED] = led
	tasks[TaskButtonA] = s.ButtonA
	tasks[TaskButtonB] = s.ButtonB
	tasks[TaskTone] = s.Tone

	exOpts := append([]sched.Option{
		sched.WithLogger(log.With().Str("component", "executor").Logger()),
		sched.WithNow(func() uint64 { return uint64(s.Clock.Now()) }),
	}, opts...)
	ex, err := sched.New(tasks, s.Ready, exOpts...)
	if err != nil {
		s.Idle.Close()
		return nil, fmt.Errorf("executor: %w", err)
	}
	s.Executor = ex

	log.Info().
		Int("tasks", len(tasks)).
		Int("max_deadlines", s.Timers.Cap()).
		Int("edge_channels", s.Edges.Channels()).
		Msg("board up")
	return s, nil
}

func (s *Sim) pin(b Button) (hal.PinID, error) {
	switch b {
	case ButtonA:
		return PinButtonA, nil
	case ButtonB:
		return PinButtonB, nil
	default:
		return 0, fmt.Errorf("unknown button %q", b)
	}
}

// Press pulls a button low.
func (s *Sim) Press(b Button) error {
	id, err := s.pin(b)
	if err != nil {
		return err
	}
	s.GPIO.Drive(id, hal.Low)
	return nil
}

// Release lets a button go back high.
func (s *Sim) Release(b Button) error {
	id, err := s.pin(b)
	if err != nil {
		return err
	}
	s.GPIO.Drive(id, hal.High)
	return nil
}

// Boot gives every task its first poll.
func (s *Sim) Boot() {
	s.Executor.Prime()
	s.Executor.Drain()
}

// Step polls whatever is ready.
func (s *Sim) Step() int { return s.Executor.Drain() }

// Advance moves simulated time forward by d, polling ready tasks after every
// step of the configured size.
func (s *Sim) Advance(d clock.Duration) {
	step := uint64(s.cfg.Sim.TicksPerStep)
	for left := uint64(d); left > 0; {
		n := step
		if n > left {
			n = left
		}
		s.RTC.Advance(n)
		s.Executor.Drain()
		left -= n
	}
}

// Run free-runs the RTC in wall time, replays the stimulus script and runs
// the executor until ctx is done.
func (s *Sim) Run(ctx context.Context) error {
	s.RTC.Start(s.cfg.Sim.StepInterval, uint64(s.cfg.Sim.TicksPerStep))
	defer s.RTC.Stop()

	for _, st := range s.cfg.Sim.Stimulus {
		st := st
		timer := time.AfterFunc(st.At, func() {
			if err := s.apply(st); err != nil {
				s.log.Error().Err(err).Msg("stimulus")
			}
		})
		defer timer.Stop()
	}

	return s.Executor.Run(ctx)
}

func (s *Sim) apply(st config.Stimulus) error {
	b := Button(st.Button)
	s.log.Debug().Str("button", st.Button).Str("action", st.Action).Dur("at", st.At).Msg("stimulus")
	switch st.Action {
	case "press":
		return s.Press(b)
	case "release":
		return s.Release(b)
	default:
		return fmt.Errorf("unknown action %q", st.Action)
	}
}

// Stats reports counters for display.
func (s *Sim) Stats() Stats {
	return Stats{
		Now:       s.Clock.Now(),
		Overflows: s.Clock.OverflowCount(),
		PressesA:  s.ButtonA.Presses(),
		PressesB:  s.ButtonB.Presses(),
		ActiveCol: s.Matrix.Active(),
		Tones:     s.Tone.Played(),
	}
}

// Close releases the idle primitive.
func (s *Sim) Close() error {
	s.RTC.Stop()
	return s.Idle.Close()
}
