package mdns

import (
	"fmt"

	"github.com/grandcat/zeroconf"

	"ucibridge/application/logging"
)

// ServiceType is the DNS-SD service chess clients browse for.
const ServiceType = "_chess-uci._tcp"

// Advertiser registers bridge endpoints over mDNS so LAN clients discover
// engines without manual addressing.
type Advertiser struct {
	logger logging.Logger
}

func NewAdvertiser(logger logging.Logger) *Advertiser {
	return &Advertiser{logger: logger}
}

// Advertise publishes one service instance and returns its shutdown
// function.
func (a *Advertiser) Advertise(instance string, port int, txt map[string]string) (func(), error) {
	records := make([]string, 0, len(txt))
	for key, value := range txt {
		records = append(records, fmt.Sprintf("%s=%s", key, value))
	}

	server, registerErr := zeroconf.Register(instance, ServiceType, "local.", port, records, nil)
	if registerErr != nil {
		return nil, fmt.Errorf("failed to register %s: %w", instance, registerErr)
	}

	a.logger.Printf("advertising %s on port %d via mDNS", instance, port)
	return server.Shutdown, nil
}
