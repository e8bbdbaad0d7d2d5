package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// OpaqueTokenBytes is the entropy of tokens that gate access (256 bits).
const OpaqueTokenBytes = 32

// NewOpaqueToken returns a URL-safe random token.
func NewOpaqueToken() (string, error) {
	buf := make([]byte, OpaqueTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// CoinFlip returns an unbiased random bool.
func CoinFlip() (bool, error) {
	var b [1]byte
	if _, err := rand.Read(b[:]); err != nil {
		return false, fmt.Errorf("read random: %w", err)
	}
	return b[0]&1 == 1, nil
}
