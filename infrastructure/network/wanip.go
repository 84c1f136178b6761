package network

import (
	"io"
	"net/http"
	"net/netip"
	"strings"
	"time"
)

var wanIPEndpoints = []string{
	"https://api.ipify.org",
	"https://ifconfig.me/ip",
	"https://checkip.amazonaws.com",
}

// WANIP queries public what-is-my-ip endpoints and returns the first valid
// answer, or an empty string when none responds (offline hosts are normal).
func WANIP() string {
	client := &http.Client{Timeout: 3 * time.Second}
	for _, endpoint := range wanIPEndpoints {
		req, reqErr := http.NewRequest(http.MethodGet, endpoint, nil)
		if reqErr != nil {
			continue
		}
		req.Header.Set("User-Agent", "ucibridge")

		resp, doErr := client.Do(req)
		if doErr != nil {
			continue
		}
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, 64))
		_ = resp.Body.Close()
		if readErr != nil {
			continue
		}

		candidate := strings.TrimSpace(string(body))
		if _, parseErr := netip.ParseAddr(candidate); parseErr == nil {
			return candidate
		}
	}
	return ""
}
