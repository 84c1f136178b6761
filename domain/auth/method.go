package auth

import "fmt"

// Method is the authentication policy variant.
type Method int

const (
	MethodNone Method = iota
	MethodToken
	MethodPSK
	MethodBoth
)

// ParseMethod maps the configuration value onto a Method.
// An empty value defaults to token for compatibility with older configs.
func ParseMethod(raw string) (Method, error) {
	switch raw {
	case "", "token":
		return MethodToken, nil
	case "none":
		return MethodNone, nil
	case "psk":
		return MethodPSK, nil
	case "both":
		return MethodBoth, nil
	default:
		return MethodNone, fmt.Errorf("unknown auth_method %q", raw)
	}
}

func (m Method) String() string {
	switch m {
	case MethodNone:
		return "none"
	case MethodToken:
		return "token"
	case MethodPSK:
		return "psk"
	case MethodBoth:
		return "both"
	default:
		return "unknown"
	}
}

// UsesToken reports whether token credentials participate in the handshake.
func (m Method) UsesToken() bool {
	return m == MethodToken || m == MethodBoth
}

// UsesPSK reports whether pre-shared-key credentials participate.
func (m Method) UsesPSK() bool {
	return m == MethodPSK || m == MethodBoth
}
