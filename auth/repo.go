package auth

import "context"

// Repository is the operation surface an identity backend implements.
// Failures that callers may branch on are returned as *Error with a Code.
type Repository interface {
	// GetCurrentUser returns the provider's view of the signed in user, or nil.
	GetCurrentUser(ctx context.Context) (*User, error)

	// GetSession returns the current session, or nil when signed out.
	GetSession(ctx context.Context) (*Session, error)

	// SignIn authenticates with email and password and establishes a session.
	SignIn(ctx context.Context, email, password string) (*SignInResult, error)

	// SignUp creates an identity. It never establishes a session.
	SignUp(ctx context.Context, email, password string) (*SignUpResult, error)

	// SignOut clears the provider side session.
	SignOut(ctx context.Context) error

	// RequestPasswordReset asks the provider to email a recovery link.
	RequestPasswordReset(ctx context.Context, email string) error

	// UpdatePassword changes the password of the current (recovery) session.
	UpdatePassword(ctx context.Context, newPassword string) error

	// VerifyRecovery exchanges an emailed recovery token for a reset capable session.
	VerifyRecovery(ctx context.Context, tokenHash string) (*Session, error)

	// ConfirmSignUp exchanges an emailed confirmation token for a session.
	ConfirmSignUp(ctx context.Context, tokenHash string) (*Session, error)
}
