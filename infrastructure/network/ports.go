package network

import (
	"fmt"
	"net"
	"strconv"
)

// portProbeRange bounds the sequential search for a free port.
const portProbeRange = 100

// FindAvailablePort probes ports sequentially from preferred by attempting a
// bind, skipping the claimed set, and returns the first port that binds.
func FindAvailablePort(host string, preferred int, claimed map[int]bool) (int, error) {
	for offset := 0; offset < portProbeRange; offset++ {
		port := preferred + offset
		if port > 65535 {
			break
		}
		if claimed[port] {
			continue
		}
		listener, bindErr := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
		if bindErr != nil {
			continue
		}
		_ = listener.Close()
		return port, nil
	}
	return 0, fmt.Errorf("no available port found in range %d-%d", preferred, preferred+portProbeRange-1)
}
