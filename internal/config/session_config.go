package config

import "time"

const devSessionSecret = "dev-only-session-secret-do-not-use"

type SessionConfig interface {
	GetSessionCookieName() string
	GetSessionSecret() string
	GetSessionCookieDomain() string
	GetSessionCookieSecure() bool
	GetSessionMaxAge() time.Duration
}

type Session struct {
	CookieName   string        `env:"SESSION_COOKIE_NAME" envDefault:"sb-auth-token"`
	Secret       string        `env:"SESSION_SECRET"`
	CookieDomain string        `env:"SESSION_COOKIE_DOMAIN"`
	CookieSecure bool          `env:"SESSION_COOKIE_SECURE"`
	MaxAge       time.Duration `env:"SESSION_MAX_AGE" envDefault:"168h"`
}

var _ SessionConfig = Session{}

func (s Session) GetSessionCookieName() string {
	return s.CookieName
}

// GetSessionSecret is the key material the session cookie is encrypted with.
// Outside DEV an empty secret fails validation before this is reached.
func (s Session) GetSessionSecret() string {
	if s.Secret == "" {
		return devSessionSecret
	}
	return s.Secret
}

func (s Session) GetSessionCookieDomain() string {
	return s.CookieDomain
}

func (s Session) GetSessionCookieSecure() bool {
	return s.CookieSecure
}

func (s Session) GetSessionMaxAge() time.Duration {
	return s.MaxAge
}
