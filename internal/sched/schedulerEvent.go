// internal/sched/schedulerEvent.go

package sched

import (
	"time"
)

// StatusKind represents the type of executor event
type StatusKind int

const (
	StatusIdle StatusKind = iota
	StatusEnqueue
	StatusDispatch
	StatusFinish
	StatusBadTask
	StatusResume
)

// StatusEvent is emitted by the run loop on key actions
type StatusEvent struct {
	Time   time.Time
	Tick   uint64 // logical time, when the executor has a clock
	Kind   StatusKind
	TaskID TaskID
	Result Poll
}

// Observer receives status events on the executor's goroutine.
type Observer func(StatusEvent)

func (sk StatusKind) String() string {
	switch sk {
	case StatusIdle:
		return "Idle"
	case StatusEnqueue:
		return "Enqueued"
	case StatusDispatch:
		return "Dispatch"
	case StatusFinish:
		return "Finish"
	case StatusBadTask:
		return "BadTask"
	case StatusResume:
		return "Resume"
	default:
		return "Unknown"
	}
}
