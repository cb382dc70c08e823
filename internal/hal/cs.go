package hal

// CS is proof that the caller is inside a critical section. Functions that
// need interrupt-shared state take a CS instead of opening their own section,
// because sections do not nest.
type CS struct {
	_ struct{}
}

// WithCS runs fn with interrupts masked and restores them on every exit path.
func WithCS(fn func(cs CS)) {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	fn(CS{})
}

// Mutex is a cell whose contents are only reachable inside a critical section.
type Mutex[T any] struct {
	v T
}

// NewMutex wraps v.
func NewMutex[T any](v T) *Mutex[T] {
	return &Mutex[T]{v: v}
}

// Borrow returns the guarded value for the duration of cs.
func (m *Mutex[T]) Borrow(_ CS) *T {
	return &m.v
}
