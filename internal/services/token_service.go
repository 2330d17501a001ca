package services

import (
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// GenerateToken returns n hex characters from a random (v4) UUID. n is
// capped at 32; the first 12 characters carry no version bits.
func GenerateToken(n int) (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generating random token: %w", err)
	}
	s := hex.EncodeToString(id[:])
	if n <= 0 || n > len(s) {
		n = len(s)
	}
	return s[:n], nil
}
