package bridge_configuration

import (
	"encoding/json"
	"fmt"
	"os"
)

type reader struct {
	path string
}

func newReader(path string) *reader {
	return &reader{path: path}
}

// read decodes the document over the optional-key defaults and returns the
// configuration together with the raw bytes for validation.
func (r *reader) read() (*Configuration, []byte, error) {
	raw, readErr := os.ReadFile(r.path)
	if readErr != nil {
		return nil, nil, fmt.Errorf("failed to read configuration %s: %w", r.path, readErr)
	}

	configuration := NewDefaultConfiguration()
	if unmarshalErr := json.Unmarshal(raw, configuration); unmarshalErr != nil {
		return nil, nil, fmt.Errorf("invalid JSON in %s: %w", r.path, unmarshalErr)
	}
	return configuration, raw, nil
}
