// Package service contains the business rules of the travel journal. It sits
// between the HTTP handlers and the repositories:
//
//	Handler (HTTP) → Service (rules) → Repository (SQLite)
//
// Services take plain values, never *http.Request, and return apperror
// values that the handler layer turns into status codes.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/travel-journal/internal/apperror"
	"github.com/sakif/travel-journal/internal/auth"
	"github.com/sakif/travel-journal/internal/model"
	"github.com/sakif/travel-journal/internal/repository"
)

// AuthService is the credential store: it registers users and checks their
// passwords. Plaintext passwords are never stored or logged.
type AuthService struct {
	users     repository.UserRepository
	passwords *auth.PasswordService
	logger    *slog.Logger
}

var _ auth.IdentityLoader = (*AuthService)(nil)

func NewAuthService(users repository.UserRepository, passwords *auth.PasswordService, logger *slog.Logger) *AuthService {
	return &AuthService{
		users:     users,
		passwords: passwords,
		logger:    logger,
	}
}

// Register creates a user with a bcrypt hash of password.
//
// Usernames are matched exactly and case-sensitively, so "Alice" and "alice"
// are two accounts. A taken username fails with apperror.ErrConflict, both
// from the lookup here and from the UNIQUE constraint if another request
// wins the race.
func (s *AuthService) Register(ctx context.Context, username, password string) (*model.User, error) {
	if username == "" {
		return nil, apperror.ValidationFailed("username", "username is required")
	}
	if len(password) > auth.MaxPasswordBytes {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("password must be %d bytes or fewer", auth.MaxPasswordBytes))
	}

	_, err := s.users.GetUserByUsername(ctx, username)
	switch {
	case err == nil:
		return nil, apperror.DuplicateUsername(username)
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, fmt.Errorf("service/auth: checking username %q: %w", username, err)
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: %w", err)
	}

	user := &model.User{
		Username:     username,
		PasswordHash: hash,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("service/auth: creating user %q: %w", username, err)
	}

	s.logger.Info("user registered",
		slog.Int64("userID", user.ID),
		slog.String("username", user.Username),
	)
	return user, nil
}

// Authenticate returns the user when password matches. An unknown username
// and a wrong password produce the same InvalidCredentials error.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (*model.User, error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.InvalidCredentials()
		}
		return nil, fmt.Errorf("service/auth: looking up %q: %w", username, err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, apperror.InvalidCredentials()
		}
		return nil, fmt.Errorf("service/auth: verifying password for %q: %w", username, err)
	}

	return user, nil
}

// LoadIdentity maps a session's user ID back to an Identity.
func (s *AuthService) LoadIdentity(ctx context.Context, userID int64) (*auth.Identity, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: loading identity %d: %w", userID, err)
	}
	return &auth.Identity{ID: user.ID, Username: user.Username}, nil
}

// EnsureUser registers username unless it already exists. An existing
// account keeps its password. created reports whether a user was added.
func (s *AuthService) EnsureUser(ctx context.Context, username, password string) (user *model.User, created bool, err error) {
	user, err = s.users.GetUserByUsername(ctx, username)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, false, fmt.Errorf("service/auth: looking up %q: %w", username, err)
	}

	user, err = s.Register(ctx, username, password)
	if errors.Is(err, apperror.ErrConflict) {
		// Created concurrently between the lookup and the insert.
		user, err = s.users.GetUserByUsername(ctx, username)
		if err != nil {
			return nil, false, fmt.Errorf("service/auth: looking up %q: %w", username, err)
		}
		return user, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return user, true, nil
}
