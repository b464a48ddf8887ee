package users

import (
	"crypto/subtle"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/alexedwards/argon2id"
	"golang.org/x/crypto/bcrypt"
)

// HashAlgorithm selects how HashPassword encodes a password for the users file.
type HashAlgorithm string

const (
	HashBcrypt   HashAlgorithm = "bcrypt"
	HashArgon2id HashAlgorithm = "argon2id"
)

const argon2idPrefix = "$argon2id$"

// MinPasswordLength is the shortest password hash-password accepts without a warning.
const MinPasswordLength = 8

// ValidatePasswordStrength reports every rule a users-file password breaks. A weak
// password is still hashed; the result is only a warning for the operator.
func ValidatePasswordStrength(password string) error {
	var missing []string
	if utf8.RuneCountInString(password) < MinPasswordLength {
		missing = append(missing, fmt.Sprintf("%d or more characters", MinPasswordLength))
	}
	if !strings.ContainsFunc(password, unicode.IsUpper) {
		missing = append(missing, "an uppercase letter")
	}
	if !strings.ContainsFunc(password, unicode.IsLower) {
		missing = append(missing, "a lowercase letter")
	}
	if !strings.ContainsFunc(password, unicode.IsDigit) {
		missing = append(missing, "a digit")
	}
	if len(missing) > 0 {
		return fmt.Errorf("weak password, needs %s", strings.Join(missing, ", "))
	}
	return nil
}

// HashPassword encodes password for storage in the local users file.
func HashPassword(password string, algorithm HashAlgorithm) (string, error) {
	switch algorithm {
	case HashBcrypt, "":
		bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		return string(bytes), err
	case HashArgon2id:
		return argon2id.CreateHash(password, argon2id.DefaultParams)
	default:
		return "", fmt.Errorf("unsupported hash algorithm %q", algorithm)
	}
}

// CheckPassword compares password against a stored entry, which may be a bcrypt hash, an
// argon2id hash or plaintext.
func CheckPassword(password, stored string) bool {
	switch {
	case isBcryptHash(stored):
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
	case strings.HasPrefix(stored, argon2idPrefix):
		match, err := argon2id.ComparePasswordAndHash(password, stored)
		return err == nil && match
	default:
		return subtle.ConstantTimeCompare([]byte(password), []byte(stored)) == 1
	}
}

func isBcryptHash(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}
