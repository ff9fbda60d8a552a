// Package password hashes and verifies user passwords with bcrypt.
package password

import (
	"golang.org/x/crypto/bcrypt"
)

// Hash returns the bcrypt hash of plain at the default cost.
func Hash(plain string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// Verify reports whether plain matches hash. A malformed hash never matches.
func Verify(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// Bcrypt adapts the package functions to the verifier interface services use.
type Bcrypt struct{}

func (Bcrypt) Hash(plain string) (string, error) { return Hash(plain) }

func (Bcrypt) Verify(plain, hash string) bool { return Verify(plain, hash) }
