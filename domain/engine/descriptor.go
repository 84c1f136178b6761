package engine

import (
	"fmt"
	"sort"
)

// Descriptor describes one configured or auto-discovered engine. Descriptors
// are built once at startup and treated as immutable afterwards; port
// resolution produces new values instead of mutating shared state.
type Descriptor struct {
	Name      string
	Path      string
	Port      int
	Overrides OverrideMap
}

// WithPort returns a copy of the descriptor bound to a resolved port.
func (d Descriptor) WithPort(port int) Descriptor {
	d.Port = port
	return d
}

// Registry is the process-wide engine catalog, keyed by engine name.
// Insertion order is preserved so the default engine falls back to the
// first registered descriptor.
type Registry struct {
	byName map[string]Descriptor
	order  []string
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Descriptor)}
}

// Add registers a descriptor. Registering an already-present name replaces
// the descriptor but keeps its original position.
func (r *Registry) Add(d Descriptor) {
	if _, exists := r.byName[d.Name]; !exists {
		r.order = append(r.order, d.Name)
	}
	r.byName[d.Name] = d
}

func (r *Registry) Get(name string) (Descriptor, bool) {
	d, ok := r.byName[name]
	return d, ok
}

func (r *Registry) Has(name string) bool {
	_, ok := r.byName[name]
	return ok
}

func (r *Registry) Len() int {
	return len(r.order)
}

// All returns descriptors in insertion order.
func (r *Registry) All() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

// SortedNames returns engine names in lexical order, as emitted by the
// engine-selection sub-protocol.
func (r *Registry) SortedNames() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	sort.Strings(names)
	return names
}

// Default resolves the default engine: the configured name when present,
// otherwise the first registered descriptor.
func (r *Registry) Default(configured string) (Descriptor, error) {
	if configured != "" {
		if d, ok := r.byName[configured]; ok {
			return d, nil
		}
	}
	if len(r.order) == 0 {
		return Descriptor{}, fmt.Errorf("no engines registered")
	}
	return r.byName[r.order[0]], nil
}
