package repofake

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-auth-bridge/auth"
)

var _ auth.Repository = (*FakeRepo)(nil)

// FakeRepo is a scriptable auth.Repository. Unset funcs return zero values.
type FakeRepo struct {
	GetCurrentUserFunc       func(ctx context.Context) (*auth.User, error)
	GetSessionFunc           func(ctx context.Context) (*auth.Session, error)
	SignInFunc               func(ctx context.Context, email, password string) (*auth.SignInResult, error)
	SignUpFunc               func(ctx context.Context, email, password string) (*auth.SignUpResult, error)
	SignOutFunc              func(ctx context.Context) error
	RequestPasswordResetFunc func(ctx context.Context, email string) error
	UpdatePasswordFunc       func(ctx context.Context, newPassword string) error
	VerifyRecoveryFunc       func(ctx context.Context, tokenHash string) (*auth.Session, error)
	ConfirmSignUpFunc        func(ctx context.Context, tokenHash string) (*auth.Session, error)

	lock  sync.RWMutex
	calls []string
}

func NewFakeRepo() *FakeRepo {
	return &FakeRepo{}
}

// Calls returns the names of the operations invoked, in order.
func (f *FakeRepo) Calls() []string {
	f.lock.RLock()
	defer f.lock.RUnlock()
	return append([]string(nil), f.calls...)
}

func (f *FakeRepo) record(name string) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.calls = append(f.calls, name)
}

func (f *FakeRepo) GetCurrentUser(ctx context.Context) (*auth.User, error) {
	f.record("GetCurrentUser")
	if f.GetCurrentUserFunc == nil {
		return nil, nil
	}
	return f.GetCurrentUserFunc(ctx)
}

func (f *FakeRepo) GetSession(ctx context.Context) (*auth.Session, error) {
	f.record("GetSession")
	if f.GetSessionFunc == nil {
		return nil, nil
	}
	return f.GetSessionFunc(ctx)
}

func (f *FakeRepo) SignIn(ctx context.Context, email, password string) (*auth.SignInResult, error) {
	f.record("SignIn")
	if f.SignInFunc == nil {
		return nil, nil
	}
	return f.SignInFunc(ctx, email, password)
}

func (f *FakeRepo) SignUp(ctx context.Context, email, password string) (*auth.SignUpResult, error) {
	f.record("SignUp")
	if f.SignUpFunc == nil {
		return nil, nil
	}
	return f.SignUpFunc(ctx, email, password)
}

func (f *FakeRepo) SignOut(ctx context.Context) error {
	f.record("SignOut")
	if f.SignOutFunc == nil {
		return nil
	}
	return f.SignOutFunc(ctx)
}

func (f *FakeRepo) RequestPasswordReset(ctx context.Context, email string) error {
	f.record("RequestPasswordReset")
	if f.RequestPasswordResetFunc == nil {
		return nil
	}
	return f.RequestPasswordResetFunc(ctx, email)
}

func (f *FakeRepo) UpdatePassword(ctx context.Context, newPassword string) error {
	f.record("UpdatePassword")
	if f.UpdatePasswordFunc == nil {
		return nil
	}
	return f.UpdatePasswordFunc(ctx, newPassword)
}

func (f *FakeRepo) VerifyRecovery(ctx context.Context, tokenHash string) (*auth.Session, error) {
	f.record("VerifyRecovery")
	if f.VerifyRecoveryFunc == nil {
		return nil, nil
	}
	return f.VerifyRecoveryFunc(ctx, tokenHash)
}

func (f *FakeRepo) ConfirmSignUp(ctx context.Context, tokenHash string) (*auth.Session, error) {
	f.record("ConfirmSignUp")
	if f.ConfirmSignUpFunc == nil {
		return nil, nil
	}
	return f.ConfirmSignUpFunc(ctx, tokenHash)
}
