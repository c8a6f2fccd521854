package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// HashCost is the bcrypt cost factor used for all password hashes.
const HashCost = 10

// maxPasswordBytes is bcrypt's input ceiling. Anything longer is rejected
// before hashing rather than silently truncated.
const maxPasswordBytes = 72

var ErrPasswordTooLong = errors.New("password exceeds maximum length")

// HashPassword returns the bcrypt digest of a plaintext password.
func HashPassword(plaintext string) (string, error) {
	if len(plaintext) > maxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), HashCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether plaintext matches the stored bcrypt digest.
func VerifyPassword(plaintext, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}
