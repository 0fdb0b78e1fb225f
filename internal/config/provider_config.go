package config

import "time"

type ProviderConfig interface {
	GetProviderURL() string
	GetProviderAnonKey() string
	GetProviderTimeout() time.Duration
	GetProviderJWTSecret() string
}

// Provider locates the identity provider. An empty URL in DEV starts the
// embedded development provider.
type Provider struct {
	URL       string        `env:"AUTH_PROVIDER_URL"`
	AnonKey   string        `env:"AUTH_PROVIDER_ANON_KEY" envDefault:"dev-anon-key"`
	Timeout   time.Duration `env:"AUTH_PROVIDER_TIMEOUT" envDefault:"10s"`
	JWTSecret string        `env:"AUTH_PROVIDER_JWT_SECRET"`
}

var _ ProviderConfig = Provider{}

func (p Provider) GetProviderURL() string {
	return p.URL
}

func (p Provider) GetProviderAnonKey() string {
	return p.AnonKey
}

func (p Provider) GetProviderTimeout() time.Duration {
	return p.Timeout
}

// GetProviderJWTSecret enables local access token verification when set.
func (p Provider) GetProviderJWTSecret() string {
	return p.JWTSecret
}
