package utils

import (
	"crypto/rand"
	"encoding/base64"
)

const apiKeyPrefix = "plk_"

// GenerateAPIKey returns a new dashboard API key: a recognizable prefix
// followed by n random bytes, base64-url encoded.
func GenerateAPIKey(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return apiKeyPrefix + base64.URLEncoding.EncodeToString(b), nil
}
