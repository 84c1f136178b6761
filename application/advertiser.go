package application

// Advertiser publishes engine endpoints on the local network (mDNS/DNS-SD).
type Advertiser interface {
	// Advertise registers one service instance; the returned handle
	// unregisters it.
	Advertise(instance string, port int, txt map[string]string) (func(), error)
}
