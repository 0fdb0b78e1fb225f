package gotrue

import (
	"time"

	"golang.org/x/oauth2"
)

const defaultExpiresIn = 3600

// Identity links a user to a sign in method at the provider.
type Identity struct {
	ID         string `json:"id"`
	IdentityID string `json:"identity_id,omitempty"`
	UserID     string `json:"user_id,omitempty"`
	Provider   string `json:"provider,omitempty"`
}

// User is the provider's user record as sent on the wire.
//
// Identities has no omitempty: a present but empty list is meaningful (the
// provider's obfuscated reply for an already registered email) and must
// survive a round trip.
type User struct {
	ID               string     `json:"id"`
	Email            string     `json:"email,omitempty"`
	CreatedAt        *time.Time `json:"created_at,omitempty"`
	UpdatedAt        *time.Time `json:"updated_at,omitempty"`
	EmailConfirmedAt *time.Time `json:"email_confirmed_at,omitempty"`
	Identities       []Identity `json:"identities"`
}

// Session is the provider's token response.
type Session struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	ExpiresAt    int64  `json:"expires_at,omitempty"` // unix seconds
	RefreshToken string `json:"refresh_token"`
	User         *User  `json:"user,omitempty"`
}

// Token returns the session as an oauth2 token for bearer authenticated calls.
func (s *Session) Token() *oauth2.Token {
	t := &oauth2.Token{
		AccessToken:  s.AccessToken,
		TokenType:    "bearer",
		RefreshToken: s.RefreshToken,
	}
	if s.ExpiresAt > 0 {
		t.Expiry = time.Unix(s.ExpiresAt, 0)
	}
	return t
}

// normalizeExpiry fills ExpiresAt from ExpiresIn when the provider omitted it.
func (s *Session) normalizeExpiry(now time.Time) {
	if s.ExpiresAt != 0 {
		return
	}
	expiresIn := s.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = defaultExpiresIn
	}
	s.ExpiresAt = now.Add(time.Duration(expiresIn) * time.Second).Unix()
}

func (s *Session) clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	if s.User != nil {
		u := *s.User
		u.Identities = append([]Identity(nil), s.User.Identities...)
		if s.User.Identities != nil && len(s.User.Identities) == 0 {
			u.Identities = []Identity{}
		}
		out.User = &u
	}
	return &out
}

// SignUpResponse is the result of POST /signup. The provider answers with a
// session when email confirmation is disabled and with a bare user otherwise.
type SignUpResponse struct {
	User    *User
	Session *Session
}

// UserAttributes is the body of PUT /user.
type UserAttributes struct {
	Email    string `json:"email,omitempty"`
	Password string `json:"password,omitempty"`
}

// VerifyType is the kind of emailed token being verified.
type VerifyType string

const (
	VerifyTypeRecovery VerifyType = "recovery"
	VerifyTypeSignup   VerifyType = "signup"
	VerifyTypeEmail    VerifyType = "email"
)

// VerifyParams is the body of POST /verify.
type VerifyParams struct {
	Type      VerifyType `json:"type"`
	TokenHash string     `json:"token_hash"`
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type recoverRequest struct {
	Email string `json:"email"`
}
