package utils

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is enforced on registration.  bcrypt ignores bytes past
// 72, so longer passwords are refused as well.
const (
	MinPasswordLength = 8
	maxPasswordBytes  = 72
)

var ErrPasswordPolicy = errors.New("password must be 8 to 72 bytes long")

// CheckPasswordPolicy validates a new password.
func CheckPasswordPolicy(plain string) error {
	if len(plain) < MinPasswordLength || len(plain) > maxPasswordBytes {
		return ErrPasswordPolicy
	}
	return nil
}

// HashPassword returns a bcrypt hash of plain at cost.
func HashPassword(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword compares a stored bcrypt hash with plain.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
