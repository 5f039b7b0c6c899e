package models

import (
	"strings"
	"time"

	"github.com/asaskevich/govalidator"

	"tally/internal/account/password"
	"tally/pkg/guard"

	dErrors "tally/pkg/domain-errors"
)

// User is the identity anchor. Debtors and products reference it as their
// owner; all scoped reads filter through this id.
//
// Invariants:
//   - ID is the normalized (lowercased, trimmed) registration email and never
//     changes, even when the contact email is later updated
//   - PasswordHash holds a bcrypt hash, never plaintext
//   - Email always has a valid shape
type User struct {
	ID           string    `json:"id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	Version      int64     `json:"-"`
}

// NormalizeEmail canonicalizes an email for use as a user id.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NewUser registers an account. The password must satisfy the policy before
// it is hashed.
func NewUser(firstName, lastName, email, plaintext string, now time.Time) (*User, error) {
	u := &User{
		ID:        NormalizeEmail(email),
		CreatedAt: now,
	}
	if err := u.UpdateProfile(firstName, lastName, email); err != nil {
		return nil, err
	}
	if err := password.CheckPolicy(plaintext); err != nil {
		return nil, err
	}
	hash, err := password.Hash(plaintext)
	if err != nil {
		return nil, err
	}
	u.PasswordHash = hash
	return u, nil
}

// FullName joins the profile names for display and token claims.
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// VerifyPassword reports whether the plaintext matches the stored hash.
func (u *User) VerifyPassword(plaintext string) bool {
	return password.Verify(plaintext, u.PasswordHash)
}

// UpdateProfile replaces the mutable profile fields. The id keeps the
// original registration email.
func (u *User) UpdateProfile(firstName, lastName, email string) error {
	if err := guard.RequireNotBlank("first name", firstName); err != nil {
		return err
	}
	if err := guard.RequireNotBlank("last name", lastName); err != nil {
		return err
	}
	if !govalidator.IsEmail(email) {
		return dErrors.New(dErrors.CodeInvariantViolation, "a valid email is required")
	}
	u.FirstName = firstName
	u.LastName = lastName
	u.Email = email
	return nil
}

// ChangePassword verifies the old password before applying the new one.
func (u *User) ChangePassword(oldPlaintext, newPlaintext string) error {
	if !u.VerifyPassword(oldPlaintext) {
		return dErrors.New(dErrors.CodeInvariantViolation, "incorrect password provided")
	}
	if err := password.CheckPolicy(newPlaintext); err != nil {
		return err
	}
	hash, err := password.Hash(newPlaintext)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}
