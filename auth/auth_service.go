package auth

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
)

// Operation prefixes used when decorating repository failures.
const (
	signInFailedPrefix      = "Sign in failed"
	signUpFailedPrefix      = "Sign up failed"
	signOutFailedPrefix     = "Sign out failed"
	currentUserFailedPrefix = "Failed to get current user"
	sessionFailedPrefix     = "Failed to get session"
	updatePasswordPrefix    = "Password update failed"
	recoveryFailedPrefix    = "Recovery link invalid"
	confirmFailedPrefix     = "Confirmation link invalid"
	unknownErrorMessage     = "Unknown error"
)

// Service is the only caller of the Repository. It decides which failures are
// decorated, which are passed through and which are hidden from the caller.
type Service struct {
	repo Repository
}

// NewService creates a Service over the given repository.
func NewService(repo Repository) (*Service, error) {
	if repo == nil {
		return nil, errors.New("[NewService] repository is required")
	}
	return &Service{repo: repo}, nil
}

// GetCurrentUser returns the signed in user or nil.
func (s *Service) GetCurrentUser(ctx context.Context) (*User, error) {
	user, err := s.repo.GetCurrentUser(ctx)
	if err != nil {
		return nil, WrapError(err, currentUserFailedPrefix)
	}
	return user, nil
}

// GetSession returns the current session or nil.
func (s *Service) GetSession(ctx context.Context) (*Session, error) {
	session, err := s.repo.GetSession(ctx)
	if err != nil {
		return nil, WrapError(err, sessionFailedPrefix)
	}
	return session, nil
}

// SignIn authenticates the user. Failures keep their code behind a "Sign in failed" prefix.
func (s *Service) SignIn(ctx context.Context, email, password string) (*SignInResult, error) {
	result, err := s.repo.SignIn(ctx, email, password)
	if err != nil {
		return nil, WrapError(err, signInFailedPrefix)
	}
	return result, nil
}

// SignUp creates an identity. Repository errors already read well and are
// returned unmodified so their code survives untouched.
func (s *Service) SignUp(ctx context.Context, email, password string) (*SignUpResult, error) {
	result, err := s.repo.SignUp(ctx, email, password)
	if err != nil {
		if err.Error() != "" {
			return nil, err
		}
		return nil, NewError(signUpFailedPrefix+": "+unknownErrorMessage, "")
	}
	return result, nil
}

// SignOut clears the session.
func (s *Service) SignOut(ctx context.Context) error {
	if err := s.repo.SignOut(ctx); err != nil {
		return WrapError(err, signOutFailedPrefix)
	}
	return nil
}

// RequestPasswordReset never fails from the caller's point of view, so the
// response cannot reveal whether an account exists for email.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) {
	if err := s.repo.RequestPasswordReset(ctx, email); err != nil {
		log.Warn().Err(err).Msg("password reset request failed")
	}
}

// UpdatePassword sets a new password on the current recovery session.
func (s *Service) UpdatePassword(ctx context.Context, newPassword string) error {
	if err := s.repo.UpdatePassword(ctx, newPassword); err != nil {
		return WrapError(err, updatePasswordPrefix)
	}
	return nil
}

// VerifyRecovery establishes the session used by UpdatePassword from an emailed token.
func (s *Service) VerifyRecovery(ctx context.Context, tokenHash string) (*Session, error) {
	session, err := s.repo.VerifyRecovery(ctx, tokenHash)
	if err != nil {
		return nil, WrapError(err, recoveryFailedPrefix)
	}
	return session, nil
}

// ConfirmSignUp confirms the email address of a new account and signs it in.
func (s *Service) ConfirmSignUp(ctx context.Context, tokenHash string) (*Session, error) {
	session, err := s.repo.ConfirmSignUp(ctx, tokenHash)
	if err != nil {
		return nil, WrapError(err, confirmFailedPrefix)
	}
	return session, nil
}
