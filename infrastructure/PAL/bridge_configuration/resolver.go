package bridge_configuration

// Resolver yields the path of the configuration document.
type Resolver interface {
	Resolve() (string, error)
}

type staticResolver struct {
	path string
}

// NewStaticResolver resolves to a fixed path; an empty path falls back to
// config.json in the working directory.
func NewStaticResolver(path string) Resolver {
	if path == "" {
		path = "config.json"
	}
	return &staticResolver{path: path}
}

func (r *staticResolver) Resolve() (string, error) {
	return r.path, nil
}
