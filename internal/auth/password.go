package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher abstracts one-way password hashing so stores and tests can
// swap the implementation.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hashedPassword, password string) error
}

// BcryptPasswordHasher implements PasswordHasher using bcrypt.
type BcryptPasswordHasher struct {
	Cost int
}

// NewBcryptPasswordHasher creates a new BcryptPasswordHasher.
// Default cost is bcrypt.DefaultCost if cost <= 0.
func NewBcryptPasswordHasher(cost int) *BcryptPasswordHasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return &BcryptPasswordHasher{Cost: cost}
}

// Hash generates a bcrypt hash for the given password.
func (h *BcryptPasswordHasher) Hash(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), h.Cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt hash generation failed: %w", err)
	}
	return string(hashedBytes), nil
}

// Verify compares a bcrypt hashed password with its possible plaintext
// equivalent. Returns nil on success.
func (h *BcryptPasswordHasher) Verify(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

var _ PasswordHasher = (*BcryptPasswordHasher)(nil)
