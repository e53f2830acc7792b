package password

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrMismatch is returned when a secret does not match its hash.
var ErrMismatch = errors.New("password: mismatch")

// Hasher defines secret hashing contract.
type Hasher interface {
	Hash(secret string) (string, error)
	Compare(hash, secret string) error
}

// BcryptHasher implements Hasher using bcrypt.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher returns a bcrypt-backed hasher.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash converts a plain secret into a hash.
func (h *BcryptHasher) Hash(secret string) (string, error) {
	if secret == "" {
		return "", errors.New("password: empty secret")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), h.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Compare checks a plain secret against a stored hash.
func (h *BcryptHasher) Compare(hash, secret string) error {
	if strings.TrimSpace(hash) == "" || secret == "" {
		return ErrMismatch
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatch
		}
		return err
	}
	return nil
}
