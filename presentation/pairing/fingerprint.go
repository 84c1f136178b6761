package pairing

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"os"
	"strings"
)

// CertFingerprint returns the SHA-256 digest of the certificate's DER bytes
// as colon-separated hex, the form clients pin against.
func CertFingerprint(certPath string) (string, error) {
	data, readErr := os.ReadFile(certPath)
	if readErr != nil {
		return "", fmt.Errorf("failed to read certificate: %w", readErr)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return "", fmt.Errorf("no PEM block in %s", certPath)
	}

	digest := sha256.Sum256(block.Bytes)
	hexDigest := hex.EncodeToString(digest[:])

	parts := make([]string, 0, len(hexDigest)/2)
	for i := 0; i < len(hexDigest); i += 2 {
		parts = append(parts, hexDigest[i:i+2])
	}
	return strings.Join(parts, ":"), nil
}
