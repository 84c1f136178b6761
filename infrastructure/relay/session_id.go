package relay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// MultiplexLabel is the reserved engine label for the single relay slot used
// in multiplex mode.
const MultiplexLabel = "__multiplex__"

// SessionID derives the deterministic rendezvous session id for one engine:
// HMAC-SHA-256 keyed by the persistent server secret over the engine name,
// truncated to 24 hex characters. A restarted host recomputes the same id
// and rejoins its relay slot.
func SessionID(secret, engineName string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(engineName))
	return hex.EncodeToString(mac.Sum(nil))[:24]
}
