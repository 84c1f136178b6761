package bridge_configuration

import (
	"encoding/json"
	"fmt"
	"os"
)

type writer struct {
	path string
}

func newWriter(path string) *writer {
	return &writer{path: path}
}

func (w *writer) Write(configuration Configuration) error {
	data, marshalErr := json.MarshalIndent(configuration, "", "  ")
	if marshalErr != nil {
		return fmt.Errorf("failed to serialize configuration: %w", marshalErr)
	}
	if writeErr := os.WriteFile(w.path, append(data, '\n'), 0o600); writeErr != nil {
		return fmt.Errorf("failed to write configuration %s: %w", w.path, writeErr)
	}
	return nil
}
