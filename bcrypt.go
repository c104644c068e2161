package users

import (
	"errors"
	"sync/atomic"

	"golang.org/x/crypto/bcrypt"
)

var hashCost atomic.Int32

// SetPasswordHashCost overrides the bcrypt cost used by HashPassword. Values
// outside bcrypt's accepted range restore the build default.
func SetPasswordHashCost(cost int) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = 0
	}
	hashCost.Store(int32(cost))
}

func currentHashCost() int {
	if c := hashCost.Load(); c > 0 {
		return int(c)
	}
	return passwordHashCost()
}

// HashPassword will generate a password hash
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), currentHashCost())
	return string(h), err
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndPassword
		}
		return err
	}
	return nil
}

// BcryptHasher is the default PasswordHasher
type BcryptHasher struct{}

func (BcryptHasher) HashPassword(password string) (string, error) {
	return HashPassword(password)
}

func (BcryptHasher) ComparePasswordAndHash(password, hash string) error {
	return ComparePasswordAndHash(password, hash)
}
