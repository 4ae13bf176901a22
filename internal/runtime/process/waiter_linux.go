//go:build linux

package process

import "golang.org/x/sys/unix"

// Waiter performs one blocking wait for a state change of a single process.
type Waiter interface {
	Wait4(pid int) (wpid int, status unix.WaitStatus, err error)
}

// WaiterFunc adapts a function to the Waiter interface.
type WaiterFunc func(pid int) (int, unix.WaitStatus, error)

func (f WaiterFunc) Wait4(pid int) (int, unix.WaitStatus, error) {
	return f(pid)
}

type unixWaiter struct{}

// Wait4 blocks the calling thread without a timeout and without flags.
func (unixWaiter) Wait4(pid int) (int, unix.WaitStatus, error) {
	var status unix.WaitStatus
	wpid, err := unix.Wait4(pid, &status, 0, nil)
	return wpid, status, err
}
