package auth

import (
	"fmt"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultBcryptCost matches the cost used by the legacy deployment
	DefaultBcryptCost = 12
	// DefaultMinPasswordLength is the floor enforced on new passwords
	DefaultMinPasswordLength = 6
)

// PasswordHasher hashes and verifies passwords with bcrypt
type PasswordHasher struct {
	cost      int
	minLength int
}

// NewPasswordHasher creates a hasher. A zero cost or length selects the
// defaults.
func NewPasswordHasher(cost, minLength int) (*PasswordHasher, error) {
	if cost == 0 {
		cost = DefaultBcryptCost
	}
	if err := ValidateBcryptCost(cost); err != nil {
		return nil, err
	}
	if minLength <= 0 {
		minLength = DefaultMinPasswordLength
	}
	return &PasswordHasher{cost: cost, minLength: minLength}, nil
}

// ValidateBcryptCost checks that cost is within bcrypt's accepted range.
func ValidateBcryptCost(cost int) error {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return fmt.Errorf("bcrypt cost must be in [%d,%d]; got %d", bcrypt.MinCost, bcrypt.MaxCost, cost)
	}
	return nil
}

// Hash derives a salted bcrypt hash of password.
func (h *PasswordHasher) Hash(password string) ([]byte, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

// Verify reports whether password matches hash. Mismatches and malformed
// hashes both return false.
func (h *PasswordHasher) Verify(password string, hash []byte) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil
}

// CheckPolicy enforces the minimum password length, counted in
// characters.
func (h *PasswordHasher) CheckPolicy(password string) error {
	if utf8.RuneCountInString(password) < h.minLength {
		return ValidationError("password must be at least %d characters", h.minLength)
	}
	// bcrypt only reads the first 72 bytes and rejects longer input
	if len(password) > 72 {
		return ValidationError("password must be at most 72 bytes")
	}
	return nil
}

// MinLength returns the enforced minimum password length.
func (h *PasswordHasher) MinLength() int {
	return h.minLength
}
