package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "tally/pkg/domain-errors"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestUser(t *testing.T) *User {
	t.Helper()
	u, err := NewUser("Ada", "Lovelace", "Ada@Example.com", "Secret123", testNow)
	require.NoError(t, err)
	return u
}

func TestNewUserNormalizesID(t *testing.T) {
	u := newTestUser(t)

	assert.Equal(t, "ada@example.com", u.ID)
	assert.Equal(t, "Ada@Example.com", u.Email)
	assert.Equal(t, "Ada Lovelace", u.FullName())
	assert.NotEqual(t, "Secret123", u.PasswordHash)
	assert.True(t, u.VerifyPassword("Secret123"))
	assert.False(t, u.VerifyPassword("wrong"))
}

func TestNewUserPasswordPolicy(t *testing.T) {
	tests := []struct {
		name     string
		password string
	}{
		{"too short", "Ab1"},
		{"no uppercase", "secret123"},
		{"no digit", "SecretWord"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewUser("Ada", "Lovelace", "ada@example.com", tt.password, testNow)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
		})
	}
}

func TestNewUserValidatesProfile(t *testing.T) {
	_, err := NewUser("", "Lovelace", "ada@example.com", "Secret123", testNow)
	assert.Error(t, err)
	_, err = NewUser("Ada", "", "ada@example.com", "Secret123", testNow)
	assert.Error(t, err)
	_, err = NewUser("Ada", "Lovelace", "not-an-email", "Secret123", testNow)
	assert.Error(t, err)
}

// The id stays anchored to the registration email even after the contact
// email changes.
func TestUpdateProfileKeepsID(t *testing.T) {
	u := newTestUser(t)
	require.NoError(t, u.UpdateProfile("Ada", "King", "countess@example.com"))

	assert.Equal(t, "ada@example.com", u.ID)
	assert.Equal(t, "countess@example.com", u.Email)
}

func TestChangePassword(t *testing.T) {
	u := newTestUser(t)

	err := u.ChangePassword("wrong", "NewSecret1")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	assert.True(t, u.VerifyPassword("Secret123"))

	err = u.ChangePassword("Secret123", "weak")
	assert.Error(t, err)

	require.NoError(t, u.ChangePassword("Secret123", "NewSecret1"))
	assert.True(t, u.VerifyPassword("NewSecret1"))
	assert.False(t, u.VerifyPassword("Secret123"))
}
