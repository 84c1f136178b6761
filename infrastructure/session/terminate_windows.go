//go:build windows

package session

import "os"

func terminate(process *os.Process) error {
	return process.Kill()
}
