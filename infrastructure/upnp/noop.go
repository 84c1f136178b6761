package upnp

import (
	"ucibridge/application"
	"ucibridge/application/logging"
)

// Noop satisfies the port-mapper contract when UPnP is disabled.
type Noop struct {
	logger logging.Logger
}

func NewNoop(logger logging.Logger) *Noop {
	return &Noop{logger: logger}
}

func (n *Noop) Map(internalPort int, internalIP, description string, _ int) (application.Mapping, error) {
	n.logger.Printf("UPnP disabled; skipping mapping for %s:%d (%s)", internalIP, internalPort, description)
	return application.Mapping{
		InternalIP:   internalIP,
		InternalPort: internalPort,
		Description:  description,
	}, nil
}
