//go:build !tinygo

package hal

import "sync"

// State is a placeholder for interrupt state on regular Go
type State uintptr

// interruptMask stands in for the global interrupt enable bit when the
// hardware is simulated. Interrupt handlers take it too, so a handler raised
// while the main line holds it stays pending until the section ends.
var interruptMask sync.Mutex

// disableInterrupts masks simulated interrupts
func disableInterrupts() State {
	interruptMask.Lock()
	return 0
}

// restoreInterrupts unmasks simulated interrupts
func restoreInterrupts(state State) {
	interruptMask.Unlock()
}
