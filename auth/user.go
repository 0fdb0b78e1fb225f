package auth

import "time"

// User is the identity record of an account known to the identity provider.
// It is replaced wholesale on every state refresh and never patched in place.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Session is the proof of authentication for its owning User.
// A Session belongs to the execution context that created it and is only ever
// shared across contexts by re-deriving it from durable storage.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

// Expired reports whether the access token is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// SignInResult is returned by a successful sign in.
type SignInResult struct {
	User    User
	Session Session
}

// SignUpResult is returned by a successful sign up. It carries no session;
// signing up does not sign the user in.
type SignUpResult struct {
	User User
}
