package session

import (
	"bufio"
	"fmt"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"ucibridge/application"
)

const quitGrace = 3 * time.Second

// Process wraps a running engine subprocess. Standard output and standard
// error are merged into one line channel; the channel closes when the
// subprocess exits.
type Process struct {
	cmd   *exec.Cmd
	stdin chanWriter
	lines chan string

	mu     sync.Mutex
	exited bool
	done   chan struct{}

	// stop flips the output reader into discard mode during shutdown so a
	// full line channel with no consumer cannot wedge the exit path.
	stop     chan struct{}
	stopOnce sync.Once
}

type chanWriter struct {
	mu     *sync.Mutex
	writer *bufio.Writer
}

// Spawner starts engine subprocesses with their working directory set to the
// binary's parent so engines find their data files (NNUE nets, books).
type Spawner struct{}

func NewSpawner() *Spawner {
	return &Spawner{}
}

func (s *Spawner) Spawn(path string) (application.EngineProcess, error) {
	cmd := exec.Command(path)
	cmd.Dir = filepath.Dir(path)

	stdin, stdinErr := cmd.StdinPipe()
	if stdinErr != nil {
		return nil, fmt.Errorf("failed to open engine stdin: %w", stdinErr)
	}
	stdout, stdoutErr := cmd.StdoutPipe()
	if stdoutErr != nil {
		return nil, fmt.Errorf("failed to open engine stdout: %w", stdoutErr)
	}
	cmd.Stderr = cmd.Stdout

	if startErr := cmd.Start(); startErr != nil {
		return nil, fmt.Errorf("failed to start engine %s: %w", path, startErr)
	}

	p := &Process{
		cmd: cmd,
		stdin: chanWriter{
			mu:     &sync.Mutex{},
			writer: bufio.NewWriter(stdin),
		},
		lines: make(chan string, 64),
		done:  make(chan struct{}),
		stop:  make(chan struct{}),
	}

	go func() {
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case p.lines <- scanner.Text():
			case <-p.stop:
				// Shutting down with nobody draining; discard until EOF so
				// Wait can run.
			}
		}
		close(p.lines)

		_ = cmd.Wait()
		p.mu.Lock()
		p.exited = true
		p.mu.Unlock()
		close(p.done)
	}()

	return p, nil
}

// WriteLine writes one command line to the engine's standard input.
func (p *Process) WriteLine(line string) error {
	p.stdin.mu.Lock()
	defer p.stdin.mu.Unlock()
	if _, writeErr := p.stdin.writer.WriteString(line + "\n"); writeErr != nil {
		return writeErr
	}
	return p.stdin.writer.Flush()
}

// Lines is the merged stdout and stderr stream. Closed on process exit.
func (p *Process) Lines() <-chan string {
	return p.lines
}

func (p *Process) Alive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.exited
}

// Quit shuts the engine down cooperatively: send quit, wait briefly, then
// escalate through terminate and kill.
func (p *Process) Quit() {
	if !p.Alive() {
		return
	}
	p.stopOnce.Do(func() { close(p.stop) })
	_ = p.WriteLine("quit")

	select {
	case <-p.done:
		return
	case <-time.After(quitGrace):
	}

	if p.cmd.Process != nil {
		_ = terminate(p.cmd.Process)
	}
	select {
	case <-p.done:
		return
	case <-time.After(quitGrace):
	}
	p.Kill()
}

// Kill terminates the process immediately.
func (p *Process) Kill() {
	p.stopOnce.Do(func() { close(p.stop) })
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	<-p.done
}
