package upnp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/huin/goupnp/dcps/internetgateway2"

	"ucibridge/application"
	"ucibridge/application/logging"
)

const discoveryTimeout = 10 * time.Second

// igdClient is the subset of the WANIPConnection service the mapper needs.
type igdClient interface {
	AddPortMapping(remoteHost string, externalPort uint16, protocol string,
		internalPort uint16, internalClient string, enabled bool,
		description string, leaseDuration uint32) error
	GetExternalIPAddress() (string, error)
}

// Mapper requests TCP port mappings from the local internet gateway so the
// bridge is reachable from outside the NAT.
type Mapper struct {
	logger   logging.Logger
	discover func() (igdClient, error)
}

func NewMapper(logger logging.Logger) *Mapper {
	return &Mapper{
		logger:   logger,
		discover: discoverGateway,
	}
}

func (m *Mapper) Map(internalPort int, internalIP, description string, leaseSeconds int) (application.Mapping, error) {
	client, discoverErr := m.discover()
	if discoverErr != nil {
		return application.Mapping{}, fmt.Errorf("no internet gateway found: %w", discoverErr)
	}

	if mapErr := client.AddPortMapping(
		"", uint16(internalPort), "TCP",
		uint16(internalPort), internalIP, true,
		description, uint32(leaseSeconds),
	); mapErr != nil {
		return application.Mapping{}, fmt.Errorf("failed to map port %d: %w", internalPort, mapErr)
	}

	externalIP, ipErr := client.GetExternalIPAddress()
	if ipErr != nil {
		m.logger.Warnf("mapped port %d but external IP lookup failed: %v", internalPort, ipErr)
	}

	return application.Mapping{
		ExternalIP:   externalIP,
		ExternalPort: internalPort,
		InternalIP:   internalIP,
		InternalPort: internalPort,
		Description:  description,
	}, nil
}

// discoverGateway finds the first responding WANIPConnection service,
// preferring the v2 profile.
func discoverGateway() (igdClient, error) {
	ctx, cancel := context.WithTimeout(context.Background(), discoveryTimeout)
	defer cancel()

	if clients, _, discoverErr := internetgateway2.NewWANIPConnection2ClientsCtx(ctx); discoverErr == nil && len(clients) > 0 {
		return clients[0], nil
	}
	if clients, _, discoverErr := internetgateway2.NewWANIPConnection1ClientsCtx(ctx); discoverErr == nil && len(clients) > 0 {
		return clients[0], nil
	}
	return nil, errors.New("no WANIPConnection service responded")
}
