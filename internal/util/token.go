package util //nolint:revive // package name util hosts small shared helpers

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// MinTokenBytes is the smallest amount of entropy accepted for opaque tokens.
const MinTokenBytes = 16

// RandomToken returns n cryptographically random bytes encoded as unpadded base64url.
// Requests below MinTokenBytes are raised to it.
func RandomToken(n int) (string, error) {
	if n < MinTokenBytes {
		n = MinTokenBytes
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
