// internal/sched/task.go

package sched

// TaskID is a task's fixed index into the executor's task list.
type TaskID uint32

// Poll is the outcome of one poll step.
type Poll uint8

const (
	Pending Poll = iota
	Ready
)

func (p Poll) String() string {
	switch p {
	case Pending:
		return "Pending"
	case Ready:
		return "Ready"
	default:
		return "Unknown"
	}
}

// Task is one cooperatively scheduled unit. Poll runs until the next
// suspension point; returning Pending means a future wake has already been
// arranged through w (a timer, an edge channel, a mailbox).
type Task interface {
	Poll(w Waker) Poll
}

// TaskFunc adapts a function to Task.
type TaskFunc func(w Waker) Poll

func (f TaskFunc) Poll(w Waker) Poll { return f(w) }

// Notifier marks a task identity ready. Interrupt-side components hold one
// and record bare identities in their wait slots.
type Notifier interface {
	Wake(id TaskID)
}

// Waker is the capability to mark one task ready. Copies are clones.
type Waker struct {
	id    TaskID
	ready *ReadyQueue
}

// TaskID is the identity this waker wakes.
func (w Waker) TaskID() TaskID { return w.id }

// Wake marks the task ready. Waking an already queued task is a no-op.
func (w Waker) Wake() {
	if w.ready == nil {
		return
	}
	w.ready.Wake(w.id)
}
