package mdns

import "ucibridge/application/logging"

// Noop satisfies the advertiser contract when mDNS is disabled.
type Noop struct {
	logger logging.Logger
}

func NewNoop(logger logging.Logger) *Noop {
	return &Noop{logger: logger}
}

func (n *Noop) Advertise(instance string, port int, _ map[string]string) (func(), error) {
	n.logger.Printf("mDNS disabled; not advertising %s on port %d", instance, port)
	return func() {}, nil
}
