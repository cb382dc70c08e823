//go:build linux && !tinygo

package hal

import (
	"context"
	"errors"

	"golang.org/x/sys/unix"
)

// pollSliceMS bounds how long a Wait can miss a context cancellation.
const pollSliceMS = 20

// eventIdler parks the main loop on an eventfd written by interrupt handlers.
type eventIdler struct {
	fd  int
	buf [8]byte
}

// NewIdler returns the host idle primitive, an eventfd when available.
func NewIdler() Idler {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return newChanIdler()
	}
	return &eventIdler{fd: fd}
}

func (e *eventIdler) Wait(ctx context.Context) error {
	fds := []unix.PollFd{{Fd: int32(e.fd), Events: unix.POLLIN}}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := unix.Poll(fds, pollSliceMS)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return err
		}
		if n == 0 {
			continue
		}
		// reading resets the eventfd counter; EAGAIN means another reader won
		if _, err := unix.Read(e.fd, e.buf[:]); err != nil && !errors.Is(err, unix.EAGAIN) {
			return err
		}
		return nil
	}
}

func (e *eventIdler) Notify() {
	one := [8]byte{1}
	_, _ = unix.Write(e.fd, one[:])
}

func (e *eventIdler) Close() error {
	return unix.Close(e.fd)
}
