package bridge_configuration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// EngineNames returns the map's engine names in lexical order, for
// deterministic iteration.
func EngineNames(engines map[string]EngineDetails) []string {
	names := make([]string, 0, len(engines))
	for name := range engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EngineOrder extracts engine names in document order from the raw
// configuration. The default engine falls back to the first entry as it
// appears in the file, which a decoded map cannot preserve.
func EngineOrder(raw []byte) ([]string, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	enginesRaw, ok := doc["engines"]
	if !ok {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(enginesRaw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, isDelim := tok.(json.Delim); !isDelim || delim != '{' {
		return nil, fmt.Errorf("engines is not a JSON object")
	}

	var order []string
	for dec.More() {
		keyTok, keyErr := dec.Token()
		if keyErr != nil {
			return nil, keyErr
		}
		name, isString := keyTok.(string)
		if !isString {
			return nil, fmt.Errorf("unexpected engines key token %v", keyTok)
		}
		order = append(order, name)

		var skip json.RawMessage
		if valErr := dec.Decode(&skip); valErr != nil {
			return nil, valErr
		}
	}
	return order, nil
}
