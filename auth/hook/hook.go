// Package hook is the bridge view code uses: the current auth state plus the
// service operations, forwarded without any decisions of its own.
package hook

import (
	"context"

	"github.com/jrsteele09/go-auth-bridge/auth"
	"github.com/jrsteele09/go-auth-bridge/auth/state"
)

// Store is the read side of the auth state store.
type Store interface {
	Snapshot() auth.State
	Subscribe(fn state.Listener) (unsubscribe func())
}

// Service is the set of operations exposed to views.
type Service interface {
	GetCurrentUser(ctx context.Context) (*auth.User, error)
	GetSession(ctx context.Context) (*auth.Session, error)
	SignIn(ctx context.Context, email, password string) (*auth.SignInResult, error)
	SignUp(ctx context.Context, email, password string) (*auth.SignUpResult, error)
	SignOut(ctx context.Context) error
	RequestPasswordReset(ctx context.Context, email string)
	UpdatePassword(ctx context.Context, newPassword string) error
	VerifyRecovery(ctx context.Context, tokenHash string) (*auth.Session, error)
	ConfirmSignUp(ctx context.Context, tokenHash string) (*auth.Session, error)
}

var (
	_ Store   = (*state.Store)(nil)
	_ Service = (*auth.Service)(nil)
)

type Hook struct {
	store   Store
	service Service
}

func New(store Store, service Service) *Hook {
	return &Hook{store: store, service: service}
}

// State returns a copy of the current auth state.
func (h *Hook) State() auth.State {
	return h.store.Snapshot()
}

// Subscribe calls fn with the current state and then with every change.
func (h *Hook) Subscribe(fn state.Listener) (unsubscribe func()) {
	return h.store.Subscribe(fn)
}

func (h *Hook) GetCurrentUser(ctx context.Context) (*auth.User, error) {
	return h.service.GetCurrentUser(ctx)
}

func (h *Hook) GetSession(ctx context.Context) (*auth.Session, error) {
	return h.service.GetSession(ctx)
}

func (h *Hook) SignIn(ctx context.Context, email, password string) (*auth.SignInResult, error) {
	return h.service.SignIn(ctx, email, password)
}

func (h *Hook) SignUp(ctx context.Context, email, password string) (*auth.SignUpResult, error) {
	return h.service.SignUp(ctx, email, password)
}

func (h *Hook) SignOut(ctx context.Context) error {
	return h.service.SignOut(ctx)
}

func (h *Hook) RequestPasswordReset(ctx context.Context, email string) {
	h.service.RequestPasswordReset(ctx, email)
}

func (h *Hook) UpdatePassword(ctx context.Context, newPassword string) error {
	return h.service.UpdatePassword(ctx, newPassword)
}

func (h *Hook) VerifyRecovery(ctx context.Context, tokenHash string) (*auth.Session, error) {
	return h.service.VerifyRecovery(ctx, tokenHash)
}

func (h *Hook) ConfirmSignUp(ctx context.Context, tokenHash string) (*auth.Session, error) {
	return h.service.ConfirmSignUp(ctx, tokenHash)
}
