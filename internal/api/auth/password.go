package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLength = 8
	// bcrypt ignores input past 72 bytes.
	maxPasswordBytes = 72
)

var (
	errPasswordTooShort = errors.New("must be at least 8 characters")
	errPasswordTooLong  = errors.New("must be at most 72 bytes")
)

// checkPasswordPolicy reports why password cannot be used for a new account.
func checkPasswordPolicy(password string) error {
	switch {
	case len([]rune(password)) < minPasswordLength:
		return errPasswordTooShort
	case len(password) > maxPasswordBytes:
		return errPasswordTooLong
	}
	return nil
}

// HashPassword returns the bcrypt hash stored in users.password_hash.
func HashPassword(password string) (string, error) {
	if len(password) > maxPasswordBytes {
		return "", errPasswordTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword compares password with a stored hash. An empty or malformed
// hash never matches.
func VerifyPassword(hash, password string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
