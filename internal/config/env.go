package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"
)

// GetEnvBase64OrPlain retrieves an environment variable that may be base64 encoded.
// If the value starts with "base64:", it will be decoded.
// Otherwise, it returns the plain value.
//
// Example usage in .env:
//
//	SKYSWEEP_APP_PASSWORD=abcd-efgh-ijkl-mnop           (plain)
//	SKYSWEEP_APP_PASSWORD=base64:YWJjZC1lZmdoLWlqa2wtbW5vcA== (base64 encoded)
func GetEnvBase64OrPlain(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", nil
	}

	if strings.HasPrefix(value, "base64:") {
		encoded := strings.TrimPrefix(value, "base64:")
		decoded, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return "", fmt.Errorf("invalid base64 encoding for %s: %w", key, err)
		}
		return strings.TrimSpace(string(decoded)), nil
	}

	return value, nil
}
