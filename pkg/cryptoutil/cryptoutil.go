// Package cryptoutil provides the small cryptographic primitives the
// WebSocket layer needs: random masks/keys and the Sec-WebSocket-Accept
// derivation (spec.md §4.8, component C8). crypto/rand is itself the
// correct CSPRNG primitive spec.md §9 calls for — no third-party CSPRNG
// appears anywhere in the retrieved example corpus to substitute it with.
package cryptoutil

import (
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"

	"github.com/driftwave/go-netstack/pkg/errors"
)

// websocketGUID is the RFC 6455 §1.3 magic string.
const websocketGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// RandomBytes fills and returns n cryptographically random bytes.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, errors.NewIOError(errors.LayerWebSocket, "reading random bytes", err)
	}
	return b, nil
}

// FrameMask returns a fresh 4-byte client-to-server masking key (RFC 6455 §5.3).
func FrameMask() ([4]byte, error) {
	var mask [4]byte
	b, err := RandomBytes(4)
	if err != nil {
		return mask, err
	}
	copy(mask[:], b)
	return mask, nil
}

// SecWebSocketKey returns a fresh base64-encoded 16-byte nonce for the
// Sec-WebSocket-Key request header (RFC 6455 §4.1).
func SecWebSocketKey() (string, error) {
	b, err := RandomBytes(16)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// AcceptKey derives the Sec-WebSocket-Accept value for a given
// Sec-WebSocket-Key, per RFC 6455 §4.2.2 step 5.
func AcceptKey(clientKey string) string {
	h := sha1.New()
	h.Write([]byte(clientKey))
	h.Write([]byte(websocketGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}
