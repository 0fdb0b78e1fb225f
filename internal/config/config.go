package config

import (
	"errors"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	ErrParsingConfig        = errors.New("failed to parse environment variables into config")
	ErrMissingSessionSecret = errors.New("SESSION_SECRET is required outside DEV")
	ErrMissingProviderURL   = errors.New("AUTH_PROVIDER_URL is required outside DEV")
)

var defaultEnvLoaded sync.Once

type Config interface {
	EnvConfig
	ProviderConfig
	SessionConfig
	CorsConfig
	SecurityConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetBaseURL() string
	GetEnv() string
	IsDev() bool
	GetLogLevel() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Provider
	Session
	Cors
	Security
}

var _ Config = mainConfig{}

// New reads the configuration from the environment. A .env file in the working
// directory is loaded first when present; variables already set win.
func New() (Config, error) {
	defaultEnvLoaded.Do(func() {
		_ = godotenv.Load()
	})
	return parse()
}

// NewFromFiles loads the given env files before reading the environment.
func NewFromFiles(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil {
		return nil, errors.Join(ErrParsingConfig, err)
	}
	return parse()
}

func parse() (Config, error) {
	var cfg mainConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, errors.Join(ErrParsingConfig, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c mainConfig) validate() error {
	if c.IsDev() {
		return nil
	}
	var errs []error
	if c.Session.Secret == "" {
		errs = append(errs, ErrMissingSessionSecret)
	}
	if c.Provider.URL == "" {
		errs = append(errs, ErrMissingProviderURL)
	}
	return errors.Join(errs...)
}
