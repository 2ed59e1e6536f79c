package token

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// size is the number of random bytes per token. 32 bytes gives 256 bits
// of entropy; the store's unique indexes are only a backstop.
const size = 32

// New returns an opaque bearer token drawn from a cryptographically
// secure random source, encoded as a URL-safe string.
func New() (string, error) {
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
