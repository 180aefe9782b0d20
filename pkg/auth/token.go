package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

const (
	// TokenLength is the number of random bytes in a token (256 bits)
	TokenLength = 32
)

// TokenGenerator generates opaque session and reset tokens
type TokenGenerator struct{}

// NewTokenGenerator creates a new token generator
func NewTokenGenerator() *TokenGenerator {
	return &TokenGenerator{}
}

// GenerateToken creates a new random token and the hash to persist.
// Format: hex(32 random bytes), 64 characters.
func (tg *TokenGenerator) GenerateToken() (token string, tokenHash string, err error) {
	randomBytes := make([]byte, TokenLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	token = hex.EncodeToString(randomBytes)
	return token, tg.HashToken(token), nil
}

// HashToken computes the SHA256 hash of a token for lookup
func (tg *TokenGenerator) HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// ValidateTokenFormat checks if a token has the correct format
func (tg *TokenGenerator) ValidateTokenFormat(token string) error {
	if len(token) != TokenLength*2 {
		return fmt.Errorf("token must be %d characters, got %d", TokenLength*2, len(token))
	}
	if _, err := hex.DecodeString(token); err != nil {
		return fmt.Errorf("invalid token encoding: %w", err)
	}
	return nil
}
