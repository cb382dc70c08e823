package app

import (
	"github.com/lulu2002/async-embed/internal/clock"
	"github.com/lulu2002/async-embed/internal/hal"
	"github.com/lulu2002/async-embed/internal/mailbox"
	"github.com/lulu2002/async-embed/internal/sched"
	"github.com/lulu2002/async-embed/internal/wakeup"
	"github.com/rs/zerolog"
)

// Sound is a square wave of one frequency.
type Sound struct {
	FreqHz     uint32
	DurationMs uint32
}

// Period is the wave period in microseconds.
func (s Sound) Period() uint32 {
	if s.FreqHz == 0 {
		return 0
	}
	return 1_000_000 / s.FreqHz
}

// Duration is how long the sound plays.
func (s Sound) Duration() clock.Duration {
	return clock.Millis(uint64(s.DurationMs))
}

type toneState uint8

const (
	toneIdle toneState = iota
	tonePlaying
)

// ToneTask plays a sound on the speaker pin for each direction it receives.
// Directions that arrive while a sound plays replace each other in the
// mailbox; only the latest is played afterwards.
type ToneTask struct {
	speaker hal.OutputPin
	timers  *wakeup.Manager
	rx      mailbox.Receiver[Direction]
	sounds  map[Direction]Sound

	state  toneState
	half   clock.Duration
	edge   *wakeup.Timer
	stop   *wakeup.Timer
	played int
	log    zerolog.Logger
}

// NewToneTask creates a tone player. sounds maps each direction to its sound.
func NewToneTask(speaker hal.OutputPin, timers *wakeup.Manager, rx mailbox.Receiver[Direction],
	sounds map[Direction]Sound, log zerolog.Logger) *ToneTask {
	return &ToneTask{
		speaker: speaker,
		timers:  timers,
		rx:      rx,
		sounds:  sounds,
		log:     log,
	}
}

// Played is the number of sounds finished.
func (t *ToneTask) Played() int { return t.played }

// Playing reports whether a sound is in progress.
func (t *ToneTask) Playing() bool { return t.state == tonePlaying }

func (t *ToneTask) Poll(w sched.Waker) sched.Poll {
	for {
		switch t.state {
		case toneIdle:
			d, p := t.rx.Poll(w)
			if p == sched.Pending {
				return sched.Pending
			}
			s, ok := t.sounds[d]
			if !ok || s.Period() == 0 {
				t.log.Warn().Stringer("direction", d).Msg("no sound for direction")
				continue
			}
			t.half = clock.Micros(uint64(s.Period() / 2))
			if t.half == 0 {
				t.half = 1
			}
			t.log.Debug().Uint32("freq_hz", s.FreqHz).Uint32("duration_ms", s.DurationMs).Msg("tone start")
			t.stop = t.timers.NewTimer(s.Duration())
			t.speaker.Toggle()
			t.edge = t.timers.NewTimer(t.half)
			t.state = tonePlaying

		case tonePlaying:
			if t.edge.Poll(w) == sched.Pending {
				return sched.Pending
			}
			if t.stop.IsReady() {
				t.speaker.Set(hal.Low)
				t.played++
				t.log.Debug().Dur("played", t.stop.Elapsed().Std()).Msg("tone end")
				t.edge, t.stop = nil, nil
				t.state = toneIdle
				continue
			}
			t.speaker.Toggle()
			t.edge = t.timers.NewTimer(t.half)
		}
	}
}
