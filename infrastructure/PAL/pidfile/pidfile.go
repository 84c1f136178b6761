package pidfile

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrAlreadyRunning reports that a live process owns the PID file.
var ErrAlreadyRunning = errors.New("server already running")

// PidFile guards single-instance startup through a file holding the owner's
// process id.
type PidFile struct {
	path string
}

func New(path string) *PidFile {
	return &PidFile{path: path}
}

func (p *PidFile) Path() string {
	return p.path
}

// Acquire refuses when the recorded process is alive, removes a stale file
// otherwise, and writes the current pid.
func (p *PidFile) Acquire() error {
	if pid, ok := p.Read(); ok {
		if Alive(pid) {
			return fmt.Errorf("%w (PID %d), use --stop first", ErrAlreadyRunning, pid)
		}
		p.Remove()
	}
	return os.WriteFile(p.path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

// Read returns the recorded pid; ok is false when the file is missing or
// holds no integer.
func (p *PidFile) Read() (int, bool) {
	data, readErr := os.ReadFile(p.path)
	if readErr != nil {
		return 0, false
	}
	pid, parseErr := strconv.Atoi(strings.TrimSpace(string(data)))
	if parseErr != nil {
		return 0, false
	}
	return pid, true
}

func (p *PidFile) Remove() {
	_ = os.Remove(p.path)
}

// Stop terminates the recorded process: a polite terminate signal, a five
// second grace period polled at 100ms, then a forced kill. The PID file is
// removed in every outcome.
func (p *PidFile) Stop() error {
	pid, ok := p.Read()
	if !ok {
		return fmt.Errorf("no PID file found at %s", p.path)
	}
	if !Alive(pid) {
		p.Remove()
		return fmt.Errorf("process %d is not running (stale PID file)", pid)
	}

	if termErr := terminate(pid); termErr != nil {
		return fmt.Errorf("failed to terminate process %d: %w", pid, termErr)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if !Alive(pid) {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	if Alive(pid) {
		_ = kill(pid)
	}

	p.Remove()
	return nil
}
