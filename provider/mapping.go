package provider

import (
	"time"

	"github.com/jrsteele09/go-auth-bridge/auth"
	"github.com/jrsteele09/go-auth-bridge/gotrue"
	"github.com/pkg/errors"
)

const defaultSessionLifetime = 3600 * time.Second

// mapUser converts a provider user. Missing timestamps default to now; a
// missing email is a mapping failure.
func mapUser(u *gotrue.User, now time.Time) (*auth.User, error) {
	if u == nil {
		return nil, auth.MissingUserErr
	}
	if u.Email == "" {
		return nil, errors.Wrapf(auth.MissingEmailErr, "user %s", u.ID)
	}

	user := &auth.User{
		ID:        u.ID,
		Email:     u.Email,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if u.CreatedAt != nil {
		user.CreatedAt = *u.CreatedAt
	}
	if u.UpdatedAt != nil {
		user.UpdatedAt = *u.UpdatedAt
	}
	return user, nil
}

// mapSession converts a provider session including its user. A missing expiry
// defaults to one hour from now.
func mapSession(s *gotrue.Session, now time.Time) (*auth.Session, error) {
	if s == nil {
		return nil, auth.MissingSessionErr
	}
	user, err := mapUser(s.User, now)
	if err != nil {
		return nil, err
	}

	expiresAt := now.Add(defaultSessionLifetime)
	if s.ExpiresAt > 0 {
		expiresAt = time.Unix(s.ExpiresAt, 0)
	}
	return &auth.Session{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresAt:    expiresAt,
		User:         *user,
	}, nil
}

// mapState derives the store state for a provider session; nil means signed out.
func mapState(s *gotrue.Session, now time.Time) (auth.State, error) {
	if s == nil {
		return auth.Unauthenticated(), nil
	}
	session, err := mapSession(s, now)
	if err != nil {
		return auth.State{}, err
	}
	return auth.Authenticated(session.User, *session), nil
}
