package config

import "golang.org/x/time/rate"

type SecurityConfig interface {
	GetEnableRateLimiting() bool
	GetRateLimit() rate.Limit
	GetRateLimitBurst() int
}

// Security throttles the auth form posts per client address.
type Security struct {
	RateLimitEnabled bool    `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitPerSec  float64 `env:"RATE_LIMIT_PER_SECOND" envDefault:"1"`
	RateLimitBurst   int     `env:"RATE_LIMIT_BURST" envDefault:"5"`
}

var _ SecurityConfig = Security{}

func (s Security) GetEnableRateLimiting() bool {
	return s.RateLimitEnabled
}

func (s Security) GetRateLimit() rate.Limit {
	return rate.Limit(s.RateLimitPerSec)
}

func (s Security) GetRateLimitBurst() int {
	return s.RateLimitBurst
}
