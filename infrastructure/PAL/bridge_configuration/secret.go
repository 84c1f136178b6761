package bridge_configuration

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// minServerSecretLen is the shortest acceptable persistent secret; anything
// shorter is regenerated.
const minServerSecretLen = 32

// EnsureServerSecret returns the persistent server secret, generating and
// persisting a fresh 64-hex-character one when the configured value is empty
// or too short. Relay session ids are derived from this secret, so it must
// survive restarts.
func EnsureServerSecret(manager BridgeConfigurationManager, configuration *Configuration) (string, error) {
	if len(configuration.ServerSecret) >= minServerSecretLen {
		return configuration.ServerSecret, nil
	}

	buf := make([]byte, 32)
	if _, randErr := rand.Read(buf); randErr != nil {
		return "", fmt.Errorf("failed to generate server secret: %w", randErr)
	}
	configuration.ServerSecret = hex.EncodeToString(buf)

	if writeErr := manager.Write(*configuration); writeErr != nil {
		return "", fmt.Errorf("failed to persist server secret: %w", writeErr)
	}
	return configuration.ServerSecret, nil
}
