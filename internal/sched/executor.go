// internal/sched/executor.go

package sched

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lulu2002/async-embed/internal/hal"
	"github.com/rs/zerolog"
)

// Executor polls a fixed task list on one goroutine, in wake order, and idles
// when nothing is ready.
type Executor struct {
	tasks    []Task
	finished []bool
	ready    *ReadyQueue
	idle     hal.Idler
	now      func() uint64
	observer Observer
	log      zerolog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Executor) { e.log = l }
}

// WithIdler sets the idle primitive, which must be the one the ready queue
// and the interrupt controller notify.
func WithIdler(idle hal.Idler) Option {
	return func(e *Executor) { e.idle = idle }
}

// WithObserver streams status events to fn.
func WithObserver(fn Observer) Option {
	return func(e *Executor) { e.observer = fn }
}

// WithNow stamps status events with logical time.
func WithNow(now func() uint64) Option {
	return func(e *Executor) { e.now = now }
}

// New creates an executor for tasks; task i has TaskID i.
func New(tasks []Task, ready *ReadyQueue, opts ...Option) (*Executor, error) {
	if len(tasks) == 0 {
		return nil, errors.New("no tasks")
	}
	if ready == nil {
		return nil, errors.New("no ready queue")
	}
	if ready.Cap() < len(tasks) {
		return nil, fmt.Errorf("ready queue capacity %d below task count %d", ready.Cap(), len(tasks))
	}

	e := &Executor{
		tasks:    tasks,
		finished: make([]bool, len(tasks)),
		ready:    ready,
		idle:     ready.idle,
		log:      zerolog.Nop(),
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Len is the number of tasks.
func (e *Executor) Len() int { return len(e.tasks) }

// Wake marks a task ready.
func (e *Executor) Wake(id TaskID) { e.ready.Wake(id) }

// Waker returns the waker for a task.
func (e *Executor) Waker(id TaskID) Waker { return e.ready.Waker(id) }

// Prime queues every task once so each gets an initial poll.
func (e *Executor) Prime() {
	for i := range e.tasks {
		e.ready.Wake(TaskID(i))
		e.emit(StatusEnqueue, TaskID(i), Pending)
	}
}

// Drain polls ready tasks until the queue is empty and returns how many polls
// ran. An identity outside the task list is reported and discarded.
func (e *Executor) Drain() int {
	polled := 0
	for {
		id, ok := e.ready.Dequeue()
		if !ok {
			return polled
		}

		if int(id) >= len(e.tasks) {
			e.log.Error().Uint32("task", uint32(id)).Msg("bad task id")
			e.emit(StatusBadTask, id, Pending)
			continue
		}
		if e.finished[id] {
			e.log.Warn().Uint32("task", uint32(id)).Msg("wake for finished task dropped")
			continue
		}

		e.log.Debug().Uint32("task", uint32(id)).Msg("running task")
		res := e.tasks[id].Poll(e.ready.Waker(id))
		polled++
		e.emit(StatusDispatch, id, res)

		if res == Ready {
			e.finished[id] = true
			e.log.Info().Uint32("task", uint32(id)).Msg("task finished")
			e.emit(StatusFinish, id, res)
		}
	}
}

// Run primes the tasks and loops until ctx ends.
func (e *Executor) Run(ctx context.Context) error {
	if e.idle == nil {
		return errors.New("no idle primitive")
	}

	e.Prime()
	for {
		e.Drain()
		if err := ctx.Err(); err != nil {
			return err
		}

		e.log.Trace().Msg("no tasks ready, going to sleep")
		e.emit(StatusIdle, 0, Pending)
		if err := e.idle.Wait(ctx); err != nil {
			return err
		}
		e.emit(StatusResume, 0, Pending)
	}
}

// RunForever runs the executor and never returns.
func (e *Executor) RunForever() {
	err := e.Run(context.Background())
	panic(fmt.Errorf("executor stopped: %w", err))
}

func (e *Executor) emit(kind StatusKind, id TaskID, res Poll) {
	if e.observer == nil {
		return
	}
	ev := StatusEvent{
		Time:   time.Now(),
		Kind:   kind,
		TaskID: id,
		Result: res,
	}
	if e.now != nil {
		ev.Tick = e.now()
	}
	e.observer(ev)
}
