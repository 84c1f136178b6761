package bridge

import (
	"fmt"
	"strings"

	"ucibridge/domain/engine"
)

// RewriteSetOption applies the option-override policy to one client line.
// Engine-local entries win over global ones; a pass-through entry pins the
// client's value even when a global substitute exists. Non-setoption lines
// return unmodified.
func RewriteSetOption(line string, local, global engine.OverrideMap) string {
	name, _, ok := parseSetOption(line)
	if !ok {
		return line
	}

	if override, exists := local[name]; exists {
		if override.Passthrough() {
			return line
		}
		return setOptionLine(name, override.Substitute())
	}
	if override, exists := global[name]; exists && !override.Passthrough() {
		return setOptionLine(name, override.Substitute())
	}
	return line
}

// StartupOptions returns the setoption lines sent right after uci at engine
// startup. Only literal substitutes apply; pass-through entries need a
// client value and have nothing to say yet.
func StartupOptions(overrides engine.OverrideMap) []string {
	if len(overrides) == 0 {
		return nil
	}
	var lines []string
	for name, override := range overrides {
		if override.Passthrough() {
			continue
		}
		lines = append(lines, setOptionLine(name, override.Substitute()))
	}
	return lines
}

// parseSetOption splits "setoption name <opt> value <val>" into its option
// name and value. The option name may itself contain spaces, so the split
// happens on the first " value " separator.
func parseSetOption(line string) (name, value string, ok bool) {
	rest, found := strings.CutPrefix(line, "setoption name ")
	if !found {
		return "", "", false
	}
	name, value, found = strings.Cut(rest, " value ")
	if !found {
		return strings.TrimSpace(rest), "", true
	}
	return strings.TrimSpace(name), value, true
}

func setOptionLine(name, value string) string {
	return fmt.Sprintf("setoption name %s value %s", name, value)
}
