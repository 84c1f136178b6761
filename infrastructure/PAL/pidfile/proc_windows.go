//go:build windows

package pidfile

import "os"

// Alive reports whether the process can be opened. On Windows FindProcess
// fails for exited processes.
func Alive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	defer func() { _ = proc.Release() }()
	return true
}

func terminate(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	defer func() { _ = proc.Release() }()
	return proc.Kill()
}

func kill(pid int) error {
	return terminate(pid)
}
