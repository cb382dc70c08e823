package hal

import "context"

// Idler is the low-power wait primitive. Wait returns once Notify has been
// called since the previous Wait returned, so a Notify that races ahead of
// Wait is never lost (the wfe/sev event register of Cortex-M). Wait may also
// return spuriously; callers re-check their queue.
type Idler interface {
	Wait(ctx context.Context) error
	Notify()
	Close() error
}

// chanIdler is the portable fallback: a one-slot event register.
type chanIdler struct {
	ev chan struct{}
}

func newChanIdler() *chanIdler {
	return &chanIdler{ev: make(chan struct{}, 1)}
}

func (c *chanIdler) Wait(ctx context.Context) error {
	select {
	case <-c.ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *chanIdler) Notify() {
	select {
	case c.ev <- struct{}{}:
	default:
	}
}

func (c *chanIdler) Close() error { return nil }
