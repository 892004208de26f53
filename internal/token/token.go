// Package token generates opaque, URL-safe random tokens for magic links and
// sessions.
package token

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// Size is the number of random bytes in a token.
const Size = 32

// New returns a base64url (unpadded) encoding of Size random bytes.
func New() (string, error) {
	b := make([]byte, Size)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
