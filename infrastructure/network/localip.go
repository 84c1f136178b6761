package network

import "net"

// LocalIP returns the machine's LAN address by opening a UDP socket toward a
// public resolver; no packet is sent. Falls back to loopback.
func LocalIP() string {
	conn, dialErr := net.Dial("udp", "8.8.8.8:80")
	if dialErr != nil {
		return "127.0.0.1"
	}
	defer func() { _ = conn.Close() }()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "127.0.0.1"
	}
	return addr.IP.String()
}
