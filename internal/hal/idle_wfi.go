//go:build tinygo && cortexm

package hal

import (
	"context"
	"device/arm"
)

// wfeIdler sleeps the core on the event register. Exception entry and
// Notify (sev) both set it, so a wake that lands between the last drain and
// the wfe makes the wfe return at once instead of sleeping until the next
// interrupt.
type wfeIdler struct{}

// NewIdler returns the wfe-based idle primitive.
func NewIdler() Idler {
	return wfeIdler{}
}

func (wfeIdler) Wait(ctx context.Context) error {
	arm.Asm("wfe")
	return ctx.Err()
}

func (wfeIdler) Notify() {
	arm.Asm("sev")
}

func (wfeIdler) Close() error { return nil }
