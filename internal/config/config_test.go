package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-bridge/internal/config"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestNew_Defaults(t *testing.T) {
	t.Setenv("ENV", "dev")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")

	cfg, err := config.New()
	require.NoError(t, err)

	require.Equal(t, ":8080", cfg.GetPort())
	require.True(t, cfg.IsDev())
	require.Equal(t, "info", cfg.GetLogLevel())
	require.Equal(t, "sb-auth-token", cfg.GetSessionCookieName())
	require.NotEmpty(t, cfg.GetSessionSecret())
	require.Equal(t, 10*time.Second, cfg.GetProviderTimeout())
	require.Equal(t, 168*time.Hour, cfg.GetSessionMaxAge())
	require.True(t, cfg.GetEnableRateLimiting())
	require.Equal(t, rate.Limit(1), cfg.GetRateLimit())
	require.Equal(t, 5, cfg.GetRateLimitBurst())
	require.Empty(t, cfg.GetAllowedOrigins())
}

func TestNew_FromEnvironment(t *testing.T) {
	t.Setenv("ENV", "PROD")
	t.Setenv("PORT", ":9090")
	t.Setenv("BASE_URL", "https://app.example.com/")
	t.Setenv("AUTH_PROVIDER_URL", "https://project.example.com/auth/v1")
	t.Setenv("AUTH_PROVIDER_ANON_KEY", "anon")
	t.Setenv("AUTH_PROVIDER_TIMEOUT", "3s")
	t.Setenv("AUTH_PROVIDER_JWT_SECRET", "jwt-secret")
	t.Setenv("SESSION_SECRET", "cookie-secret")
	t.Setenv("SESSION_COOKIE_SECURE", "true")
	t.Setenv("RATE_LIMIT_ENABLED", "false")

	cfg, err := config.New()
	require.NoError(t, err)

	require.False(t, cfg.IsDev())
	require.Equal(t, ":9090", cfg.GetPort())
	require.Equal(t, "https://app.example.com", cfg.GetBaseURL())
	require.Equal(t, "https://project.example.com/auth/v1", cfg.GetProviderURL())
	require.Equal(t, "anon", cfg.GetProviderAnonKey())
	require.Equal(t, 3*time.Second, cfg.GetProviderTimeout())
	require.Equal(t, "jwt-secret", cfg.GetProviderJWTSecret())
	require.Equal(t, "cookie-secret", cfg.GetSessionSecret())
	require.True(t, cfg.GetSessionCookieSecure())
	require.False(t, cfg.GetEnableRateLimiting())
}

func TestNew_ProductionRequiresSecrets(t *testing.T) {
	t.Setenv("ENV", "PROD")
	t.Setenv("AUTH_PROVIDER_URL", "")
	t.Setenv("SESSION_SECRET", "")

	_, err := config.New()
	require.ErrorIs(t, err, config.ErrMissingSessionSecret)
	require.ErrorIs(t, err, config.ErrMissingProviderURL)
}

func TestNew_ParseError(t *testing.T) {
	t.Setenv("ENV", "DEV")
	t.Setenv("AUTH_PROVIDER_TIMEOUT", "soon")

	_, err := config.New()
	require.ErrorIs(t, err, config.ErrParsingConfig)
}

func TestNewFromFiles(t *testing.T) {
	t.Setenv("ENV", "DEV")
	t.Setenv("SESSION_COOKIE_NAME", "env-cookie")
	t.Cleanup(func() {
		_ = os.Unsetenv("APP_NAME")
		_ = os.Unsetenv("CORS_ALLOWED_ORIGINS")
	})

	cfg, err := config.NewFromFiles("testdata/.env.test")
	require.NoError(t, err)

	require.Equal(t, "Auth Bridge Test", cfg.GetAppName())
	require.Equal(t, "env-cookie", cfg.GetSessionCookieName(), "variables already set win over the file")
	require.True(t, cfg.GetAllowedOrigins().IsAllowedOrigin("https://b.example.com"))
	require.False(t, cfg.GetAllowedOrigins().IsAllowedOrigin("https://c.example.com"))

	_, err = config.NewFromFiles("testdata/missing.env")
	require.ErrorIs(t, err, config.ErrParsingConfig)
}
