//go:build !windows

package session

import (
	"os"

	"golang.org/x/sys/unix"
)

func terminate(process *os.Process) error {
	return process.Signal(unix.SIGTERM)
}
