//go:build !windows

package pidfile

import (
	"errors"

	"golang.org/x/sys/unix"
)

// Alive probes the process with signal 0. EPERM means the process exists but
// belongs to another user.
func Alive(pid int) bool {
	err := unix.Kill(pid, 0)
	if err == nil {
		return true
	}
	return errors.Is(err, unix.EPERM)
}

func terminate(pid int) error {
	return unix.Kill(pid, unix.SIGTERM)
}

func kill(pid int) error {
	err := unix.Kill(pid, unix.SIGKILL)
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}
