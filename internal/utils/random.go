package utils

import (
	"crypto/rand"
	"encoding/base64"
)

// RandomString creates a random base64url string from length bytes of crypto/rand.
func RandomString(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
