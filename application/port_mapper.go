package application

// Mapping describes an acquired router port mapping.
type Mapping struct {
	ExternalIP   string
	ExternalPort int
	InternalIP   string
	InternalPort int
	Description  string
}

// PortMapper acquires and renews router port mappings (UPnP IGD or similar).
// Absence of a gateway is reported as an error and downgrades gracefully.
type PortMapper interface {
	Map(internalPort int, internalIP, description string, leaseSeconds int) (Mapping, error)
}
