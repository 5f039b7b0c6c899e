package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tally/internal/account/service"
	"tally/internal/account/store"

	dErrors "tally/pkg/domain-errors"
)

type stubTokens struct{}

func (stubTokens) GenerateAccessToken(userID, email, name string, _ time.Duration) (string, error) {
	return "token-for-" + userID, nil
}

// countingThrottle locks out after three failures, in memory.
type countingThrottle struct {
	mu       sync.Mutex
	failures map[string]int
}

func newCountingThrottle() *countingThrottle {
	return &countingThrottle{failures: make(map[string]int)}
}

func (t *countingThrottle) Allow(_ context.Context, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failures[id] >= 3 {
		return dErrors.New(dErrors.CodeUnauthorized, "too many failed login attempts, try again later")
	}
	return nil
}

func (t *countingThrottle) RecordFailure(_ context.Context, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failures[id]++
	return nil
}

func (t *countingThrottle) Reset(_ context.Context, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.failures, id)
	return nil
}

func newService(opts ...service.Option) *service.Service {
	return service.New(store.NewMemory(), stubTokens{}, opts...)
}

func register(t *testing.T, svc *service.Service) {
	t.Helper()
	_, err := svc.Register(context.Background(), service.RegisterInput{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "Ada@Example.com",
		Password:  "Secret123",
	})
	require.NoError(t, err)
}

func TestRegisterNormalizesID(t *testing.T) {
	svc := newService()

	user, err := svc.Register(context.Background(), service.RegisterInput{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "  Ada@Example.com ",
		Password:  "Secret123",
	})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", user.ID)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc := newService()
	register(t, svc)

	_, err := svc.Register(context.Background(), service.RegisterInput{
		FirstName: "Ada",
		LastName:  "Again",
		Email:     "ada@example.com",
		Password:  "Secret123",
	})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
}

func TestRegisterWeakPassword(t *testing.T) {
	svc := newService()

	_, err := svc.Register(context.Background(), service.RegisterInput{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada@example.com",
		Password:  "short",
	})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func TestLogin(t *testing.T) {
	svc := newService()
	register(t, svc)

	token, user, err := svc.Login(context.Background(), "ADA@example.com", "Secret123")
	require.NoError(t, err)
	assert.Equal(t, "token-for-ada@example.com", token)
	assert.Equal(t, "Ada Lovelace", user.FullName())
}

func TestLoginWrongPasswordAndUnknownEmailReadTheSame(t *testing.T) {
	svc := newService()
	register(t, svc)

	_, _, errWrong := svc.Login(context.Background(), "ada@example.com", "WrongPass1")
	_, _, errUnknown := svc.Login(context.Background(), "nobody@example.com", "Secret123")

	require.Error(t, errWrong)
	require.Error(t, errUnknown)
	assert.Equal(t, dErrors.Message(errWrong), dErrors.Message(errUnknown))
	assert.True(t, dErrors.HasCode(errWrong, dErrors.CodeUnauthorized))
	assert.True(t, dErrors.HasCode(errUnknown, dErrors.CodeUnauthorized))
}

func TestLoginThrottleLocksAfterRepeatedFailures(t *testing.T) {
	throttle := newCountingThrottle()
	svc := newService(service.WithThrottle(throttle))
	register(t, svc)

	for i := 0; i < 3; i++ {
		_, _, err := svc.Login(context.Background(), "ada@example.com", "WrongPass1")
		require.Error(t, err)
	}

	// Even the correct password is rejected while locked.
	_, _, err := svc.Login(context.Background(), "ada@example.com", "Secret123")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	assert.Contains(t, dErrors.Message(err), "too many failed login attempts")
}

func TestLoginSuccessResetsThrottle(t *testing.T) {
	throttle := newCountingThrottle()
	svc := newService(service.WithThrottle(throttle))
	register(t, svc)

	for i := 0; i < 2; i++ {
		_, _, err := svc.Login(context.Background(), "ada@example.com", "WrongPass1")
		require.Error(t, err)
	}
	_, _, err := svc.Login(context.Background(), "ada@example.com", "Secret123")
	require.NoError(t, err)

	assert.Empty(t, throttle.failures)
}

func TestUpdateProfileKeepsID(t *testing.T) {
	svc := newService()
	register(t, svc)

	user, err := svc.UpdateProfile(context.Background(), "ada@example.com",
		"Augusta", "King", "countess@example.com")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", user.ID)
	assert.Equal(t, "countess@example.com", user.Email)

	// Login still keys off the registration email.
	_, _, err = svc.Login(context.Background(), "ada@example.com", "Secret123")
	assert.NoError(t, err)
}

func TestChangePassword(t *testing.T) {
	svc := newService()
	register(t, svc)

	err := svc.ChangePassword(context.Background(), "ada@example.com", "WrongOld1", "NewSecret1")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	require.NoError(t, svc.ChangePassword(context.Background(), "ada@example.com", "Secret123", "NewSecret1"))

	_, _, err = svc.Login(context.Background(), "ada@example.com", "NewSecret1")
	assert.NoError(t, err)
}

func TestDeleteAccount(t *testing.T) {
	svc := newService()
	register(t, svc)

	require.NoError(t, svc.DeleteAccount(context.Background(), "ada@example.com"))

	_, err := svc.GetProfile(context.Background(), "ada@example.com")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}
