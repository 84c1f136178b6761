package engine

// overridePassthrough is the configuration sentinel meaning "forward the
// client's value unmodified".
const overridePassthrough = "override"

// Override is a two-variant policy for one UCI option: either the client's
// value passes through, or a fixed substitute replaces it.
type Override struct {
	substitute  string
	passthrough bool
}

// NewOverride interprets a raw configuration value. The literal "override"
// selects pass-through; anything else is a substitute value.
func NewOverride(raw string) Override {
	if raw == overridePassthrough {
		return Override{passthrough: true}
	}
	return Override{substitute: raw}
}

func (o Override) Passthrough() bool {
	return o.passthrough
}

func (o Override) Substitute() string {
	return o.substitute
}

// OverrideMap maps UCI option names to their override policy.
type OverrideMap map[string]Override

// NewOverrideMap converts a raw name→value configuration map.
func NewOverrideMap(raw map[string]string) OverrideMap {
	if len(raw) == 0 {
		return nil
	}
	m := make(OverrideMap, len(raw))
	for name, value := range raw {
		m[name] = NewOverride(value)
	}
	return m
}
