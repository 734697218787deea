package federation

import (
	"crypto/rand"
	"encoding/hex"
)

// NewState generates the CSRF state parameter: 32 cryptographically random
// bytes, hex encoded to 64 characters.
func NewState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
