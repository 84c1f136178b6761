package session

import (
	"fmt"
	"sync"
	"time"

	"ucibridge/application"
	"ucibridge/application/logging"
)

type state int

const (
	stateActive state = iota
	stateWarm
)

type entry struct {
	process application.EngineProcess
	state   state
	expiry  *time.Timer
}

// Manager is the process-wide registry of engine subprocesses keyed by
// engine name. It hands a warm process back to a reconnecting client so the
// engine keeps its hash tables and learned state across transient
// disconnects. One mutex mediates all state transitions, which keeps expiry
// and reattach from racing.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*entry
	spawner  application.EngineSpawner
	logger   logging.Logger
}

func NewManager(spawner application.EngineSpawner, logger logging.Logger) *Manager {
	return &Manager{
		sessions: make(map[string]*entry),
		spawner:  spawner,
		logger:   logger,
	}
}

// Acquire returns the engine process for name, reattaching to a warm session
// when one is alive and spawning otherwise. The second result reports
// whether an existing process was reused.
func (m *Manager) Acquire(name, path string) (application.EngineProcess, bool, error) {
	m.mu.Lock()

	if existing, ok := m.sessions[name]; ok {
		if existing.state == stateWarm && existing.process.Alive() {
			if existing.expiry != nil {
				existing.expiry.Stop()
				existing.expiry = nil
			}
			existing.state = stateActive
			m.mu.Unlock()
			m.logger.Printf("reattached to warm engine session: %s", name)
			return existing.process, true, nil
		}
		// Dead or still marked active from a bridge that never released.
		delete(m.sessions, name)
	}
	m.mu.Unlock()

	process, spawnErr := m.spawner.Spawn(path)
	if spawnErr != nil {
		return nil, false, fmt.Errorf("failed to spawn engine %s: %w", name, spawnErr)
	}

	m.mu.Lock()
	m.sessions[name] = &entry{process: process, state: stateActive}
	m.mu.Unlock()
	return process, false, nil
}

// Release returns a process after its bridge ends. With keepalive over zero
// the process is kept warm and an expiry task terminates it later; expiry is
// cancelled if a client reattaches first. Otherwise the process is
// terminated synchronously. Only the registered process may transition its
// entry: a caller whose process was evicted by a later Acquire gets its own
// process terminated and leaves the current entry alone.
func (m *Manager) Release(name string, process application.EngineProcess, keepalive time.Duration) {
	m.mu.Lock()
	existing, ok := m.sessions[name]
	if !ok || existing.process != process {
		m.mu.Unlock()
		// Orphaned: the registry moved on, so nobody can reattach and
		// keepalive cannot apply.
		if process != nil {
			process.Quit()
		}
		return
	}

	if keepalive <= 0 {
		delete(m.sessions, name)
		process := existing.process
		m.mu.Unlock()
		process.Quit()
		return
	}

	existing.state = stateWarm
	existing.expiry = time.AfterFunc(keepalive, func() {
		m.expire(name)
	})
	m.mu.Unlock()
	m.logger.Printf("keeping engine %s warm for %s", name, keepalive)
}

// expire terminates a warm session whose keepalive elapsed. A reattach that
// won the race leaves the entry active and expire backs off.
func (m *Manager) expire(name string) {
	m.mu.Lock()
	existing, ok := m.sessions[name]
	if !ok || existing.state != stateWarm {
		m.mu.Unlock()
		return
	}
	delete(m.sessions, name)
	process := existing.process
	m.mu.Unlock()

	m.logger.Printf("warm engine session expired: %s", name)
	process.Quit()
}

// ShutdownAll terminates every session synchronously and clears the
// registry.
func (m *Manager) ShutdownAll() {
	m.mu.Lock()
	processes := make([]application.EngineProcess, 0, len(m.sessions))
	for name, existing := range m.sessions {
		if existing.expiry != nil {
			existing.expiry.Stop()
		}
		processes = append(processes, existing.process)
		delete(m.sessions, name)
	}
	m.mu.Unlock()

	for _, process := range processes {
		process.Quit()
	}
}

// Active reports the number of registered sessions, warm included.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
