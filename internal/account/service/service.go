package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"tally/internal/account/models"
	"tally/internal/platform/metrics"
	"tally/pkg/platform/sentinel"

	dErrors "tally/pkg/domain-errors"
)

const accessTokenTTL = 24 * time.Hour

// Store is the user repository contract. Lookups are keyed by the normalized
// registration email, which doubles as the user id.
type Store interface {
	InsertUser(ctx context.Context, user *models.User) error
	FindUser(ctx context.Context, id string) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, id string) error
}

// TokenIssuer mints signed access tokens for authenticated users.
type TokenIssuer interface {
	GenerateAccessToken(userID, email, name string, expiresIn time.Duration) (string, error)
}

// Throttle rations failed login attempts per identifier.
type Throttle interface {
	Allow(ctx context.Context, identifier string) error
	RecordFailure(ctx context.Context, identifier string) error
	Reset(ctx context.Context, identifier string) error
}

// Service owns registration, login and profile management.
type Service struct {
	store    Store
	tokens   TokenIssuer
	throttle Throttle
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithThrottle(t Throttle) Option {
	return func(s *Service) {
		s.throttle = t
	}
}

func New(store Store, tokens TokenIssuer, opts ...Option) *Service {
	s := &Service{store: store, tokens: tokens, logger: slog.Default(), throttle: noopThrottle{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterInput carries the signup fields.
type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	user, err := models.NewUser(in.FirstName, in.LastName, in.Email, in.Password, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	if err := s.store.InsertUser(ctx, user); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "an account with this email already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to register account")
	}

	if s.metrics != nil {
		s.metrics.IncrementUsersCreated()
	}
	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID)
	return user, nil
}

// Login verifies the credentials and mints an access token. Failed attempts
// count against the throttle; unknown emails and wrong passwords read the
// same from outside.
func (s *Service) Login(ctx context.Context, email, plaintext string) (string, *models.User, error) {
	id := models.NormalizeEmail(email)
	if err := s.throttle.Allow(ctx, id); err != nil {
		return "", nil, err
	}

	user, err := s.store.FindUser(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.recordLoginFailure(ctx, id)
			return "", nil, dErrors.New(dErrors.CodeUnauthorized, "invalid email or password")
		}
		return "", nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account")
	}
	if !user.VerifyPassword(plaintext) {
		s.recordLoginFailure(ctx, id)
		return "", nil, dErrors.New(dErrors.CodeUnauthorized, "invalid email or password")
	}

	token, err := s.tokens.GenerateAccessToken(user.ID, user.Email, user.FullName(), accessTokenTTL)
	if err != nil {
		return "", nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue access token")
	}

	if err := s.throttle.Reset(ctx, id); err != nil {
		s.logger.WarnContext(ctx, "failed to reset login throttle", "user_id", id, "error", err)
	}
	s.logger.InfoContext(ctx, "user logged in", "user_id", user.ID)
	return token, user, nil
}

func (s *Service) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.store.FindUser(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "account not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account")
	}
	return user, nil
}

func (s *Service) UpdateProfile(ctx context.Context, userID, firstName, lastName, email string) (*models.User, error) {
	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := user.UpdateProfile(firstName, lastName, email); err != nil {
		return nil, err
	}
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return nil, s.translateUpdate(err)
	}
	return user, nil
}

func (s *Service) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return err
	}
	if err := user.ChangePassword(oldPassword, newPassword); err != nil {
		return err
	}
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return s.translateUpdate(err)
	}
	s.logger.InfoContext(ctx, "password changed", "user_id", userID)
	return nil
}

// DeleteAccount removes the user. Accounts that still own debtors or
// products are protected by the schema and surface as a conflict.
func (s *Service) DeleteAccount(ctx context.Context, userID string) error {
	err := s.store.DeleteUser(ctx, userID)
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return dErrors.New(dErrors.CodeNotFound, "account not found")
		case errors.Is(err, sentinel.ErrRestricted):
			return dErrors.New(dErrors.CodeConflict, "account still owns ledger or inventory data and cannot be deleted")
		default:
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete account")
		}
	}
	s.logger.InfoContext(ctx, "account deleted", "user_id", userID)
	return nil
}

func (s *Service) recordLoginFailure(ctx context.Context, id string) {
	if s.metrics != nil {
		s.metrics.IncrementLoginFailures()
	}
	if err := s.throttle.RecordFailure(ctx, id); err != nil {
		s.logger.WarnContext(ctx, "failed to record login failure", "user_id", id, "error", err)
	}
}

func (s *Service) translateUpdate(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "account not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "account was modified concurrently, reload and retry")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update account")
	}
}

type noopThrottle struct{}

func (noopThrottle) Allow(context.Context, string) error         { return nil }
func (noopThrottle) RecordFailure(context.Context, string) error { return nil }
func (noopThrottle) Reset(context.Context, string) error         { return nil }
