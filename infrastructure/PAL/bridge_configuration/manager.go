package bridge_configuration

import (
	"errors"
	"fmt"
)

// ErrInvalidConfiguration marks a document that failed validation; the
// violation list travels alongside it.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// BridgeConfigurationManager loads, validates and persists the bridge
// configuration document.
type BridgeConfigurationManager interface {
	Configuration() (*Configuration, []byte, error)
	Write(configuration Configuration) error
	Violations() []string
}

type Manager struct {
	resolver   Resolver
	violations []string
}

func NewManager(resolver Resolver) *Manager {
	return &Manager{resolver: resolver}
}

// Configuration reads and validates the document. On validation failure the
// error wraps ErrInvalidConfiguration and Violations() reports every defect.
func (m *Manager) Configuration() (*Configuration, []byte, error) {
	path, pathErr := m.resolver.Resolve()
	if pathErr != nil {
		return nil, nil, fmt.Errorf("failed to resolve configuration path: %w", pathErr)
	}

	configuration, raw, readErr := newReader(path).read()
	if readErr != nil {
		return nil, nil, readErr
	}

	m.violations = Validate(raw, configuration)
	if len(m.violations) > 0 {
		return configuration, raw, fmt.Errorf("%w: %s (%d violations)", ErrInvalidConfiguration, path, len(m.violations))
	}
	return configuration, raw, nil
}

func (m *Manager) Write(configuration Configuration) error {
	path, pathErr := m.resolver.Resolve()
	if pathErr != nil {
		return fmt.Errorf("failed to resolve configuration path: %w", pathErr)
	}
	return newWriter(path).Write(configuration)
}

func (m *Manager) Violations() []string {
	return m.violations
}
