package utils

import (
	"crypto/rand"
)

// GenerateSalt returns n random bytes for blinding a sealed-bid commitment.
func GenerateSalt(n int) ([]byte, error) {
	salt := make([]byte, n)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	return salt, nil
}
