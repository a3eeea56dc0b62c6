// Package service contains the business logic of the shortener.
//
// Handlers parse and validate HTTP input, then call a service with plain Go
// values. Services talk to the stores through the repository interfaces,
// issue tokens, queue mail and re-classify every storage error into the
// apperror taxonomy before it leaves the package:
//
//	Handler (HTTP) → Service (rules) → Repository (SQL)
//	                              ↘ auth.Issuers (JWT)
//	                              ↘ Notifier (mail queue)
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/albizan/shortify-backend/internal/apperror"
	"github.com/albizan/shortify-backend/internal/auth"
	"github.com/albizan/shortify-backend/internal/model"
	"github.com/albizan/shortify-backend/internal/repository"
)

// Notifier sends the account emails. Implementations must not block on
// delivery and have no way to report failure: the workflow never fails
// because a mail could not be sent.
type Notifier interface {
	SendConfirmation(ctx context.Context, email, activationURL string)
	SendPasswordReset(ctx context.Context, email, resetURL string)
}

// Frontend routes the mailed links point at.
const (
	ConfirmEmailPath = "/confirm-email/"
	NewPasswordPath  = "/new-password/"
)

// AuthService handles registration, login, activation and password reset.
type AuthService struct {
	users        repository.UserRepository
	tokens       *auth.Issuers
	passwords    *auth.PasswordService
	notifier     Notifier
	frontendHost string
	logger       *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	tokens *auth.Issuers,
	passwords *auth.PasswordService,
	notifier Notifier,
	frontendHost string,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:        users,
		tokens:       tokens,
		passwords:    passwords,
		notifier:     notifier,
		frontendHost: strings.TrimRight(frontendHost, "/"),
		logger:       logger,
	}
}

// Register creates an inactive account and mails its confirmation link.
// The returned projection never carries the password hash.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*model.PublicUser, error) {
	if len(password) > auth.MaxPasswordBytes {
		return nil, apperror.ValidationFailed("password", "password must be at most 72 bytes")
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		s.logger.ErrorContext(ctx, "hashing password failed", slog.String("error", err.Error()))
		return nil, apperror.Internal("user was not saved")
	}

	user := &model.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		IsActive:     false,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, apperror.Conflict("user already exists")
		}
		s.logger.ErrorContext(ctx, "saving user failed", slog.String("error", err.Error()))
		return nil, apperror.Internal("user was not saved")
	}

	s.logger.InfoContext(ctx, "user registered", slog.String("userID", user.ID))
	s.sendConfirmation(ctx, user)

	pub := user.Public()
	return &pub, nil
}

// Login checks credentials and returns a session token.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return "", apperror.Unauthorized("invalid credentials")
		}
		s.logger.ErrorContext(ctx, "loading user for login failed", slog.String("error", err.Error()))
		return "", apperror.Internal("cannot log in")
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.ErrorContext(ctx, "comparing password failed",
				slog.String("userID", user.ID),
				slog.String("error", err.Error()),
			)
		}
		return "", apperror.Unauthorized("invalid credentials")
	}

	if !user.IsActive {
		return "", apperror.Unauthorized("account not activated")
	}

	token, err := s.tokens.Session.Issue(user.ID)
	if err != nil {
		s.logger.ErrorContext(ctx, "issuing session token failed", slog.String("error", err.Error()))
		return "", apperror.Internal("cannot log in")
	}
	return token, nil
}

// RequestPasswordReset mails a reset link if the address is known. It
// behaves the same whether or not the account exists.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			s.logger.ErrorContext(ctx, "loading user for password reset failed", slog.String("error", err.Error()))
		}
		return
	}

	token, err := s.tokens.Reset.Issue(user.ID)
	if err != nil {
		s.logger.ErrorContext(ctx, "issuing reset token failed", slog.String("error", err.Error()))
		return
	}
	s.notifier.SendPasswordReset(ctx, user.Email, s.frontendHost+NewPasswordPath+token)
}

// ResendConfirmation mails a fresh confirmation link to an inactive account.
// Active accounts are left alone.
func (s *AuthService) ResendConfirmation(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.Unauthorized("user not found")
		}
		s.logger.ErrorContext(ctx, "loading user for resend failed", slog.String("error", err.Error()))
		return apperror.Internal("cannot resend confirmation")
	}

	if user.IsActive {
		return nil
	}
	s.sendConfirmation(ctx, user)
	return nil
}

// ChangePassword sets a new password using a mailed reset token.
// The two passwords are compared before the token is even looked at.
func (s *AuthService) ChangePassword(ctx context.Context, token, password1, password2 string) (*model.PublicUser, error) {
	if password1 != password2 {
		return nil, apperror.BadRequest("passwords don't match")
	}

	userID, err := s.tokens.Reset.Verify(token)
	if err != nil {
		return nil, apperror.BadRequest("invalid token")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.BadRequest("invalid token")
		}
		s.logger.ErrorContext(ctx, "loading user for password change failed", slog.String("error", err.Error()))
		return nil, apperror.Internal("password was not updated")
	}

	if len(password1) > auth.MaxPasswordBytes {
		return nil, apperror.ValidationFailed("password_1", "password must be at most 72 bytes")
	}
	hash, err := s.passwords.Hash(password1)
	if err != nil {
		s.logger.ErrorContext(ctx, "hashing password failed", slog.String("error", err.Error()))
		return nil, apperror.Internal("password was not updated")
	}

	user.PasswordHash = hash
	if err := s.users.Update(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "saving new password failed",
			slog.String("userID", user.ID),
			slog.String("error", err.Error()),
		)
		return nil, apperror.Internal("password was not updated")
	}

	s.logger.InfoContext(ctx, "password changed", slog.String("userID", user.ID))
	pub := user.Public()
	return &pub, nil
}

// ConfirmEmail activates the account named by a confirmation token.
// Confirming twice is not an error.
func (s *AuthService) ConfirmEmail(ctx context.Context, token string) error {
	userID, err := s.tokens.Confirmation.Verify(token)
	if err != nil {
		return apperror.NotFoundMsg("invalid confirmation token")
	}

	if err := s.users.Activate(ctx, userID); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.NotFoundMsg("invalid confirmation token")
		}
		s.logger.ErrorContext(ctx, "activating user failed",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return apperror.Internal("cannot activate user")
	}

	s.logger.InfoContext(ctx, "user activated", slog.String("userID", userID))
	return nil
}

// Me returns the sanitized profile of the authenticated user.
func (s *AuthService) Me(ctx context.Context, userID string) (*model.PublicUser, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized("user not found")
		}
		s.logger.ErrorContext(ctx, "loading current user failed", slog.String("error", err.Error()))
		return nil, apperror.Internal("cannot load user")
	}
	pub := user.Public()
	return &pub, nil
}

// sendConfirmation issues a confirmation token and queues the mail. Failures
// are logged only.
func (s *AuthService) sendConfirmation(ctx context.Context, user *model.User) {
	token, err := s.tokens.Confirmation.Issue(user.ID)
	if err != nil {
		s.logger.ErrorContext(ctx, "issuing confirmation token failed",
			slog.String("userID", user.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	s.notifier.SendConfirmation(ctx, user.Email, s.frontendHost+ConfirmEmailPath+token)
}
