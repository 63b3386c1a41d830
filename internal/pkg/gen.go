package pkg

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// GenerateAuthToken - generates a new opaque session token.
func GenerateAuthToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate auth token: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}
