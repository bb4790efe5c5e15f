package account

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

const hashVersionBcrypt = "bcrypt"

// HashPassword hashes a plaintext password using bcrypt.
func HashPassword(password string) (hash string, version string, err error) {
	if len(password) < 8 {
		return "", "", errors.New("password too short")
	}

	bytes, err := bcrypt.GenerateFromPassword(
		[]byte(password),
		bcrypt.DefaultCost,
	)
	if err != nil {
		return "", "", err
	}

	return string(bytes), hashVersionBcrypt, nil
}

// VerifyPassword compares a plaintext password with the stored hash.
func VerifyPassword(hash string, password string) error {
	return bcrypt.CompareHashAndPassword(
		[]byte(hash),
		[]byte(password),
	)
}
