// Package provider adapts the GoTrue client to the auth domain: it implements
// auth.Repository with the error normalisation rules, and state.Source so the
// client's change events drive an auth state store.
package provider

import (
	"context"
	"time"

	"github.com/jrsteele09/go-auth-bridge/auth"
	"github.com/jrsteele09/go-auth-bridge/gotrue"
	"github.com/rs/zerolog/log"
)

// Client is the subset of *gotrue.Client the adapter relies on.
type Client interface {
	SignInWithPassword(ctx context.Context, email, password string) (*gotrue.Session, error)
	SignUp(ctx context.Context, email, password, redirectTo string) (*gotrue.SignUpResponse, error)
	SignOut(ctx context.Context) error
	Session(ctx context.Context) (*gotrue.Session, error)
	User(ctx context.Context) (*gotrue.User, error)
	UpdateUser(ctx context.Context, attrs gotrue.UserAttributes) (*gotrue.User, error)
	ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error
	VerifyOTP(ctx context.Context, params gotrue.VerifyParams) (*gotrue.Session, error)
	DiscardSession(ctx context.Context) error
	OnAuthStateChange(cb gotrue.ChangeCallback) *gotrue.Subscription
}

var (
	_ Client          = (*gotrue.Client)(nil)
	_ auth.Repository = (*Repository)(nil)
)

type RepositoryOption func(r *Repository)

// WithEmailRedirect is where the sign up confirmation link lands.
func WithEmailRedirect(url string) RepositoryOption {
	return func(r *Repository) {
		r.emailRedirectTo = url
	}
}

// WithRecoveryRedirect is where the password recovery link lands.
func WithRecoveryRedirect(url string) RepositoryOption {
	return func(r *Repository) {
		r.recoveryRedirectTo = url
	}
}

func WithClock(now func() time.Time) RepositoryOption {
	return func(r *Repository) {
		r.now = now
	}
}

// Repository implements auth.Repository on top of a GoTrue client.
type Repository struct {
	client             Client
	emailRedirectTo    string
	recoveryRedirectTo string
	now                func() time.Time
}

func NewRepository(client Client, opts ...RepositoryOption) *Repository {
	r := &Repository{client: client, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Repository) GetCurrentUser(ctx context.Context) (*auth.User, error) {
	u, err := r.client.User(ctx)
	if err != nil {
		return nil, providerError(err)
	}
	if u == nil {
		return nil, nil
	}
	user, err := mapUser(u, r.now())
	if err != nil {
		return nil, providerError(err)
	}
	return user, nil
}

func (r *Repository) GetSession(ctx context.Context) (*auth.Session, error) {
	s, err := r.client.Session(ctx)
	if err != nil {
		return nil, providerError(err)
	}
	if s == nil {
		return nil, nil
	}
	session, err := mapSession(s, r.now())
	if err != nil {
		return nil, providerError(err)
	}
	return session, nil
}

func (r *Repository) SignIn(ctx context.Context, email, password string) (*auth.SignInResult, error) {
	s, err := r.client.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, normalizeSignInError(err)
	}
	session, err := r.adoptSession(ctx, s)
	if err != nil {
		return nil, err
	}
	return &auth.SignInResult{User: session.User, Session: *session}, nil
}

// SignUp creates the identity only. Any session in the provider reply is
// dropped; SignIn is the one operation that establishes sessions.
func (r *Repository) SignUp(ctx context.Context, email, password string) (*auth.SignUpResult, error) {
	resp, err := r.client.SignUp(ctx, email, password, r.emailRedirectTo)
	if err != nil {
		return nil, normalizeSignUpError(err)
	}
	if isObfuscatedDuplicate(resp.User) {
		return nil, duplicateUserError()
	}
	user, err := mapUser(resp.User, r.now())
	if err != nil {
		return nil, providerError(err)
	}
	return &auth.SignUpResult{User: *user}, nil
}

func (r *Repository) SignOut(ctx context.Context) error {
	if err := r.client.SignOut(ctx); err != nil {
		return providerError(err)
	}
	return nil
}

// RequestPasswordReset never returns an error: a visible failure would tell
// the caller whether the email has an account.
func (r *Repository) RequestPasswordReset(ctx context.Context, email string) error {
	if err := r.client.ResetPasswordForEmail(ctx, email, r.recoveryRedirectTo); err != nil {
		log.Error().Err(err).Msg("provider rejected password reset request")
	}
	return nil
}

func (r *Repository) UpdatePassword(ctx context.Context, newPassword string) error {
	if _, err := r.client.UpdateUser(ctx, gotrue.UserAttributes{Password: newPassword}); err != nil {
		return providerError(err)
	}
	return nil
}

func (r *Repository) VerifyRecovery(ctx context.Context, tokenHash string) (*auth.Session, error) {
	s, err := r.client.VerifyOTP(ctx, gotrue.VerifyParams{Type: gotrue.VerifyTypeRecovery, TokenHash: tokenHash})
	if err != nil {
		return nil, providerError(err)
	}
	return r.adoptSession(ctx, s)
}

func (r *Repository) ConfirmSignUp(ctx context.Context, tokenHash string) (*auth.Session, error) {
	s, err := r.client.VerifyOTP(ctx, gotrue.VerifyParams{Type: gotrue.VerifyTypeSignup, TokenHash: tokenHash})
	if err != nil {
		return nil, providerError(err)
	}
	return r.adoptSession(ctx, s)
}

// adoptSession maps a session the client has just stored. A session that
// cannot be mapped is discarded so it does not outlive the failed operation.
func (r *Repository) adoptSession(ctx context.Context, s *gotrue.Session) (*auth.Session, error) {
	session, err := mapSession(s, r.now())
	if err == nil {
		return session, nil
	}
	if discardErr := r.client.DiscardSession(ctx); discardErr != nil {
		log.Error().Err(discardErr).Msg("failed to discard unmappable session")
	}
	return nil, providerError(err)
}
