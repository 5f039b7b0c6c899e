package password

import (
	"errors"
	"fmt"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	dErrors "tally/pkg/domain-errors"
)

// CheckPolicy enforces the account password rules: at least 8 characters with
// an uppercase letter and a digit.
func CheckPolicy(plaintext string) error {
	if len(plaintext) < 8 {
		return dErrors.New(dErrors.CodeInvariantViolation, "password must be at least 8 characters long")
	}
	var upper, digit bool
	for _, r := range plaintext {
		if unicode.IsUpper(r) {
			upper = true
		}
		if unicode.IsDigit(r) {
			digit = true
		}
	}
	if !upper || !digit {
		return dErrors.New(dErrors.CodeInvariantViolation, "password must include an uppercase letter and a number")
	}
	return nil
}

// Hash creates a bcrypt hash of the plaintext password.
func Hash(plaintext string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", dErrors.New(dErrors.CodeInvariantViolation, "password is too long")
		}
		return "", fmt.Errorf("could not hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify reports whether the plaintext matches the stored bcrypt hash.
func Verify(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
