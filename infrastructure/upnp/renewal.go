package upnp

import (
	"context"
	"time"

	"ucibridge/application"
	"ucibridge/application/logging"
)

// RunRenewal re-requests every mapping at half the lease interval so
// mappings survive as long as the process does. Failures are logged and
// retried on the next tick.
func RunRenewal(ctx context.Context, mapper application.PortMapper, mappings []application.Mapping, leaseSeconds int, logger logging.Logger) {
	if leaseSeconds <= 0 || len(mappings) == 0 {
		return
	}

	interval := time.Duration(leaseSeconds) * time.Second / 2
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, mapping := range mappings {
				if _, renewErr := mapper.Map(mapping.InternalPort, mapping.InternalIP, mapping.Description, leaseSeconds); renewErr != nil {
					logger.Warnf("failed to renew mapping for port %d: %v", mapping.InternalPort, renewErr)
				}
			}
		}
	}
}
