package security

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/colsign/colsign-go/internal/errors"
)

// HashPassword derives a bcrypt hash for storage.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.Newf("password must not be empty").
			Category(errors.CategoryValidation).
			Context("operation", "hash-password").
			Build()
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), passwordHashCost)
	if err != nil {
		return "", errors.New(err).
			Category(errors.CategoryAuth).
			Context("operation", "hash-password").
			Build()
	}
	return string(hash), nil
}

// CheckPassword reports whether the password matches the stored hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
