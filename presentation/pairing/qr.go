package pairing

import (
	"fmt"
	"io"
	"strings"

	"github.com/skip2/go-qrcode"
)

// PrintQR renders the pairing payload as a terminal QR code plus a readable
// summary, for scanning from a chess client.
func PrintQR(w io.Writer, payload *QRPayload) error {
	encoded, encodeErr := payload.Encode()
	if encodeErr != nil {
		return encodeErr
	}

	divider := strings.Repeat("=", 60)
	fmt.Fprintf(w, "\n%s\n  Chess UCI Bridge - Pairing\n%s\n\n", divider, divider)
	fmt.Fprintf(w, "  Server: %s\n", payload.Host)
	if payload.SinglePort {
		fmt.Fprintf(w, "  Port:   %d (single-port mode)\n", payload.Port)
	}
	if payload.ExternalHost != "" {
		fmt.Fprintf(w, "  External: %s\n", payload.ExternalHost)
	}
	for _, entry := range payload.Engines {
		tag := ""
		if payload.TLS {
			tag += " (TLS)"
		}
		if payload.Token != "" {
			tag += " (AUTH)"
		}
		if payload.SinglePort {
			fmt.Fprintf(w, "  Engine: %s%s\n", entry.Name, tag)
		} else {
			fmt.Fprintf(w, "  Engine: %s on port %d%s\n", entry.Name, entry.Port, tag)
		}
	}
	if payload.Relay != nil {
		fmt.Fprintf(w, "  Relay:  %s:%d\n", payload.Relay.Host, payload.Relay.Port)
	}

	code, qrErr := qrcode.New(encoded, qrcode.Medium)
	if qrErr != nil {
		fmt.Fprintf(w, "\n  QR rendering failed (%v); import the payload manually:\n", qrErr)
	} else {
		fmt.Fprintln(w, "\n  Scan this QR code from your chess client:")
		fmt.Fprintln(w)
		fmt.Fprint(w, code.ToSmallString(false))
	}

	fmt.Fprintf(w, "\n  Payload (for manual import):\n  %s\n%s\n\n", encoded, divider)
	return nil
}
