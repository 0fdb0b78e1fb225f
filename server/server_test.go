package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-bridge/gotrue"
	"github.com/jrsteele09/go-auth-bridge/internal/config"
	"github.com/jrsteele09/go-auth-bridge/internal/devprovider"
	"github.com/jrsteele09/go-auth-bridge/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

const (
	testAPIKey    = "anon-key"
	testJWTSecret = "test-jwt-secret-with-at-least-32-characters"
	testEmail     = "user@example.com"
	testPassword  = "Password1"
	cookieName    = "sb-auth-token"
)

type testClock struct {
	lock sync.Mutex
	now  time.Time
}

func (c *testClock) Now() time.Time {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.now = c.now.Add(d)
}

type fixtureOptions struct {
	localVerify bool
	rateLimit   bool
	provider    func(dp http.Handler) http.Handler
}

type fixtureOption func(o *fixtureOptions)

func withoutLocalVerification() fixtureOption {
	return func(o *fixtureOptions) { o.localVerify = false }
}

func withRateLimit() fixtureOption {
	return func(o *fixtureOptions) { o.rateLimit = true }
}

// withProvider serves provider calls from the handler wrap builds around the dev provider.
func withProvider(wrap func(dp http.Handler) http.Handler) fixtureOption {
	return func(o *fixtureOptions) { o.provider = wrap }
}

type testFixture struct {
	devProvider *devprovider.Provider
	providerURL string
	server      *server.Server
	app         *httptest.Server
	client      *http.Client
	clock       *testClock
}

func setupTestFixture(t *testing.T, opts ...fixtureOption) *testFixture {
	t.Helper()
	o := fixtureOptions{localVerify: true}
	for _, opt := range opts {
		opt(&o)
	}

	clock := &testClock{now: time.Now()}
	dp := devprovider.New(
		devprovider.WithAPIKey(testAPIKey),
		devprovider.WithJWTSecret(testJWTSecret),
		devprovider.WithClock(clock.Now),
	)
	var handler http.Handler = dp
	if o.provider != nil {
		handler = o.provider(dp)
	}
	provider := httptest.NewServer(handler)
	t.Cleanup(provider.Close)

	_, err := dp.CreateUser(testEmail, testPassword, true)
	require.NoError(t, err)

	t.Setenv("ENV", "DEV")
	t.Setenv("AUTH_PROVIDER_URL", provider.URL)
	t.Setenv("AUTH_PROVIDER_ANON_KEY", testAPIKey)
	t.Setenv("SESSION_SECRET", "test-session-secret")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://spa.example.com")
	t.Setenv("RATE_LIMIT_BURST", "2")
	t.Setenv("RATE_LIMIT_PER_SECOND", "0.001")
	if o.localVerify {
		t.Setenv("AUTH_PROVIDER_JWT_SECRET", testJWTSecret)
	} else {
		t.Setenv("AUTH_PROVIDER_JWT_SECRET", "")
	}
	if o.rateLimit {
		t.Setenv("RATE_LIMIT_ENABLED", "true")
	} else {
		t.Setenv("RATE_LIMIT_ENABLED", "false")
	}

	cfg, err := config.New()
	require.NoError(t, err)

	s, err := server.New(cfg, server.WithClock(clock.Now), server.WithRegistry(prometheus.NewRegistry()))
	require.NoError(t, err)
	t.Cleanup(s.Close)

	app := httptest.NewServer(s)
	t.Cleanup(app.Close)

	return &testFixture{
		devProvider: dp,
		providerURL: provider.URL,
		server:      s,
		app:         app,
		client:      newBrowser(t),
		clock:       clock,
	}
}

// newBrowser keeps cookies and reports redirects instead of following them.
func newBrowser(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

type response struct {
	status   int
	location string
	body     string
	header   http.Header
}

func (f *testFixture) do(t *testing.T, client *http.Client, req *http.Request) response {
	t.Helper()
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return response{
		status:   resp.StatusCode,
		location: resp.Header.Get("Location"),
		body:     string(body),
		header:   resp.Header,
	}
}

func (f *testFixture) get(t *testing.T, path string) response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, f.app.URL+path, nil)
	require.NoError(t, err)
	return f.do(t, f.client, req)
}

func (f *testFixture) postForm(t *testing.T, path string, form url.Values) response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, f.app.URL+path, strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return f.do(t, f.client, req)
}

func (f *testFixture) signIn(t *testing.T, email, password string) response {
	t.Helper()
	return f.postForm(t, server.RouteSignIn, url.Values{"email": {email}, "password": {password}})
}

// sessionCookies are the session cookies the browser currently holds.
func (f *testFixture) sessionCookies(t *testing.T) []*http.Cookie {
	t.Helper()
	u, err := url.Parse(f.app.URL)
	require.NoError(t, err)
	var cookies []*http.Cookie
	for _, c := range f.client.Jar.Cookies(u) {
		if c.Name == cookieName || strings.HasPrefix(c.Name, cookieName+".") {
			cookies = append(cookies, c)
		}
	}
	return cookies
}

func TestProtectedPage_RedirectsWithoutSession(t *testing.T) {
	f := setupTestFixture(t)

	resp := f.get(t, server.RouteHome)
	require.Equal(t, http.StatusSeeOther, resp.status)
	require.Equal(t, server.RouteSignIn, resp.location)

	resp = f.get(t, server.RouteResetPassword)
	require.Equal(t, http.StatusSeeOther, resp.status)
	require.Equal(t, server.RouteSignIn, resp.location)
}

func TestSignIn_SessionIsVisibleToServer(t *testing.T) {
	for name, opts := range map[string][]fixtureOption{
		"local verification":  nil,
		"provider round trip": {withoutLocalVerification()},
	} {
		t.Run(name, func(t *testing.T) {
			f := setupTestFixture(t, opts...)

			resp := f.signIn(t, testEmail, testPassword)
			require.Equal(t, http.StatusSeeOther, resp.status)
			require.Equal(t, server.RouteHome, resp.location)
			require.NotEmpty(t, f.sessionCookies(t))

			// The page the redirect lands on sees the session: no bounce back to sign in.
			resp = f.get(t, server.RouteHome)
			require.Equal(t, http.StatusOK, resp.status)
			require.Contains(t, resp.body, testEmail)

			resp = f.get(t, server.RouteSignIn)
			require.Equal(t, http.StatusSeeOther, resp.status)
			require.Equal(t, server.RouteHome, resp.location)

			resp = f.get(t, server.RouteSignUp)
			require.Equal(t, http.StatusSeeOther, resp.status)
			require.Equal(t, server.RouteHome, resp.location)
		})
	}
}

func TestSignIn_HTMXGetsRedirectHeader(t *testing.T) {
	f := setupTestFixture(t)

	form := url.Values{"email": {testEmail}, "password": {testPassword}}
	req, err := http.NewRequest(http.MethodPost, f.app.URL+server.RouteSignIn, strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("HX-Request", "true")

	resp := f.do(t, f.client, req)
	require.Equal(t, http.StatusNoContent, resp.status)
	require.Equal(t, server.RouteHome, resp.header.Get("HX-Redirect"))
}

func TestSignIn_Failures(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
		setup    func(t *testing.T, f *testFixture)
		message  string
	}{
		{
			name:     "wrong password",
			email:    testEmail,
			password: "Wrong1234",
			message:  "Invalid email or password.",
		},
		{
			name:     "unknown email",
			email:    "nobody@example.com",
			password: testPassword,
			message:  "Invalid email or password.",
		},
		{
			name:     "unconfirmed email",
			email:    "pending@example.com",
			password: testPassword,
			setup: func(t *testing.T, f *testFixture) {
				_, err := f.devProvider.CreateUser("pending@example.com", testPassword, false)
				require.NoError(t, err)
			},
			message: "Please confirm your email address before signing in.",
		},
		{
			name:     "invalid email is caught before the provider",
			email:    "not-an-email",
			password: testPassword,
			message:  "Email address is not valid.",
		},
		{
			name:     "missing password",
			email:    testEmail,
			password: "",
			message:  "Password is required.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupTestFixture(t)
			if tt.setup != nil {
				tt.setup(t, f)
			}

			resp := f.signIn(t, tt.email, tt.password)
			require.Equal(t, http.StatusOK, resp.status)
			require.Contains(t, resp.body, tt.message)
			require.Empty(t, f.sessionCookies(t))
		})
	}
}

func TestSignUp(t *testing.T) {
	signUp := func(t *testing.T, f *testFixture, email, password string) response {
		return f.postForm(t, server.RouteSignUp, url.Values{
			"email":            {email},
			"password":         {password},
			"confirm_password": {password},
		})
	}

	t.Run("new account is asked to confirm", func(t *testing.T) {
		f := setupTestFixture(t)

		resp := signUp(t, f, "new@example.com", "Password2")
		require.Equal(t, http.StatusOK, resp.status)
		require.Contains(t, resp.body, "Check your email")
		require.Empty(t, f.sessionCookies(t))

		mail, ok := f.devProvider.LastMail("new@example.com", devprovider.MailConfirmSignup)
		require.True(t, ok)

		resp = f.get(t, server.RouteAuthCallback+"?type=signup&token_hash="+mail.TokenHash)
		require.Equal(t, http.StatusSeeOther, resp.status)
		require.Equal(t, server.RouteHome, resp.location)

		resp = f.get(t, server.RouteHome)
		require.Equal(t, http.StatusOK, resp.status)
		require.Contains(t, resp.body, "new@example.com")
	})

	t.Run("existing account with matching password is signed in", func(t *testing.T) {
		f := setupTestFixture(t)

		resp := signUp(t, f, testEmail, testPassword)
		require.Equal(t, http.StatusSeeOther, resp.status)
		require.Equal(t, server.RouteHome, resp.location)

		resp = f.get(t, server.RouteHome)
		require.Equal(t, http.StatusOK, resp.status)
	})

	t.Run("existing account with another password", func(t *testing.T) {
		f := setupTestFixture(t)

		resp := signUp(t, f, testEmail, "Another123")
		require.Equal(t, http.StatusOK, resp.status)
		require.Contains(t, resp.body, "An account with this email already exists. Please sign in.")
		require.Empty(t, f.sessionCookies(t))
	})

	t.Run("mismatched confirmation never reaches the provider", func(t *testing.T) {
		f := setupTestFixture(t)

		resp := f.postForm(t, server.RouteSignUp, url.Values{
			"email":            {"new@example.com"},
			"password":         {"Password2"},
			"confirm_password": {"Password3"},
		})
		require.Equal(t, http.StatusOK, resp.status)
		require.Contains(t, resp.body, "Passwords do not match.")
		require.Empty(t, f.devProvider.Outbox())
	})
}

func TestSignOut(t *testing.T) {
	f := setupTestFixture(t)
	f.signIn(t, testEmail, testPassword)
	require.NotEmpty(t, f.sessionCookies(t))

	resp := f.postForm(t, server.RouteSignOut, nil)
	require.Equal(t, http.StatusSeeOther, resp.status)
	require.Equal(t, server.RouteSignIn, resp.location)
	require.Empty(t, f.sessionCookies(t))

	resp = f.get(t, server.RouteHome)
	require.Equal(t, http.StatusSeeOther, resp.status)
}

func TestRevokedSessionIsCleared(t *testing.T) {
	f := setupTestFixture(t, withoutLocalVerification())
	f.signIn(t, testEmail, testPassword)
	stolen := f.sessionCookies(t)
	require.NotEmpty(t, stolen)

	f.postForm(t, server.RouteSignOut, nil)

	// Replaying the cookie of a signed out session must not work.
	req, err := http.NewRequest(http.MethodGet, f.app.URL+server.RouteHome, nil)
	require.NoError(t, err)
	for _, c := range stolen {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
	resp := f.do(t, newBrowser(t), req)
	require.Equal(t, http.StatusSeeOther, resp.status)
	require.Equal(t, server.RouteSignIn, resp.location)
	require.Contains(t, strings.Join(resp.header.Values("Set-Cookie"), "\n"), "Max-Age=0")
}

func TestTamperedCookieIsCleared(t *testing.T) {
	f := setupTestFixture(t)

	req, err := http.NewRequest(http.MethodGet, f.app.URL+server.RouteHome, nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: cookieName, Value: "bm90LWEtc2Vzc2lvbg"})

	resp := f.do(t, newBrowser(t), req)
	require.Equal(t, http.StatusSeeOther, resp.status)
	require.Equal(t, server.RouteSignIn, resp.location)
	require.Contains(t, strings.Join(resp.header.Values("Set-Cookie"), "\n"), cookieName+"=;")
}

func TestExpiredAccessTokenIsRefreshedAndWrittenBack(t *testing.T) {
	f := setupTestFixture(t)
	f.signIn(t, testEmail, testPassword)
	before := f.sessionCookies(t)
	require.NotEmpty(t, before)

	f.clock.Advance(2 * time.Hour)

	resp := f.get(t, server.RouteHome)
	require.Equal(t, http.StatusOK, resp.status)
	require.NotEmpty(t, resp.header.Values("Set-Cookie"))

	after := f.sessionCookies(t)
	require.NotEmpty(t, after)
	require.NotEqual(t, before[0].Value, after[0].Value)

	// The written back session is good without another refresh.
	resp = f.get(t, server.RouteHome)
	require.Equal(t, http.StatusOK, resp.status)
	require.Empty(t, resp.header.Values("Set-Cookie"))

	metrics := f.get(t, server.RouteMetrics)
	require.Contains(t, metrics.body, `authbridge_session_checks_total{result="refreshed"} 1`)
}

func TestForgotPassword_SameNoticeForEveryEmail(t *testing.T) {
	f := setupTestFixture(t)

	known := f.postForm(t, server.RouteForgotPassword, url.Values{"email": {testEmail}})
	unknown := f.postForm(t, server.RouteForgotPassword, url.Values{"email": {"nobody@example.com"}})

	require.Equal(t, http.StatusOK, known.status)
	require.Equal(t, known.status, unknown.status)
	require.Equal(t, known.body, unknown.body)
	require.Contains(t, known.body, "password reset link is on its way")

	require.Len(t, f.devProvider.Outbox(), 1)
}

func TestPasswordRecovery(t *testing.T) {
	f := setupTestFixture(t)

	f.postForm(t, server.RouteForgotPassword, url.Values{"email": {testEmail}})
	mail, ok := f.devProvider.LastMail(testEmail, devprovider.MailRecovery)
	require.True(t, ok)

	resp := f.get(t, server.RouteAuthCallback+"?type=recovery&token_hash="+mail.TokenHash)
	require.Equal(t, http.StatusSeeOther, resp.status)
	require.Equal(t, server.RouteResetPassword, resp.location)

	resp = f.get(t, server.RouteResetPassword)
	require.Equal(t, http.StatusOK, resp.status)
	require.Contains(t, resp.body, testEmail)

	resp = f.postForm(t, server.RouteResetPassword, url.Values{
		"password":         {"Changed123"},
		"confirm_password": {"Changed123"},
	})
	require.Equal(t, http.StatusOK, resp.status)
	require.Contains(t, resp.body, "Your password has been updated.")

	f.postForm(t, server.RouteSignOut, nil)
	resp = f.signIn(t, testEmail, testPassword)
	require.Contains(t, resp.body, "Invalid email or password.")
	resp = f.signIn(t, testEmail, "Changed123")
	require.Equal(t, http.StatusSeeOther, resp.status)
}

func TestAuthCallback_InvalidLink(t *testing.T) {
	f := setupTestFixture(t)

	resp := f.get(t, server.RouteAuthCallback+"?type=recovery&token_hash=bogus")
	require.Equal(t, http.StatusSeeOther, resp.status)
	require.Equal(t, server.RouteForgotPassword+"?error=otp_expired", resp.location)

	resp = f.get(t, resp.location)
	require.Equal(t, http.StatusOK, resp.status)
	require.Contains(t, resp.body, "This link is invalid or has expired.")

	resp = f.get(t, server.RouteAuthCallback)
	require.Equal(t, http.StatusSeeOther, resp.status)
	require.True(t, strings.HasPrefix(resp.location, server.RouteSignIn))
}

func TestRateLimiting(t *testing.T) {
	f := setupTestFixture(t, withRateLimit())

	for i := 0; i < 2; i++ {
		resp := f.signIn(t, testEmail, "Wrong1234")
		require.Equal(t, http.StatusOK, resp.status)
	}
	resp := f.signIn(t, testEmail, testPassword)
	require.Equal(t, http.StatusTooManyRequests, resp.status)
	require.NotEmpty(t, resp.header.Get("Retry-After"))
	require.Empty(t, f.sessionCookies(t))

	// Pages that do not reach the provider are not limited.
	resp = f.get(t, server.RouteSignIn)
	require.Equal(t, http.StatusOK, resp.status)

	metrics := f.get(t, server.RouteMetrics)
	require.Contains(t, metrics.body, `authbridge_rate_limited_total{route="/auth/signin"} 1`)
}

func providerSession(t *testing.T, f *testFixture) *gotrue.Session {
	t.Helper()
	client, err := gotrue.New(f.providerURL, testAPIKey, gotrue.WithClock(f.clock.Now))
	require.NoError(t, err)
	session, err := client.SignInWithPassword(context.Background(), testEmail, testPassword)
	require.NoError(t, err)
	return session
}

func (f *testFixture) sessionAPI(t *testing.T, method string, body any) (response, server.SessionStatus) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, f.app.URL+server.RouteAPISession, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp := f.do(t, f.client, req)
	var status server.SessionStatus
	require.NoError(t, json.Unmarshal([]byte(resp.body), &status))
	return resp, status
}

func TestSessionAPI(t *testing.T) {
	t.Run("mirror, read and clear", func(t *testing.T) {
		f := setupTestFixture(t)
		session := providerSession(t, f)

		resp, status := f.sessionAPI(t, http.MethodGet, nil)
		require.Equal(t, http.StatusOK, resp.status)
		require.False(t, status.Authenticated)

		resp, status = f.sessionAPI(t, http.MethodPost, server.SessionTokens{
			AccessToken:  session.AccessToken,
			RefreshToken: session.RefreshToken,
		})
		require.Equal(t, http.StatusOK, resp.status)
		require.True(t, status.Authenticated)
		require.Equal(t, testEmail, status.Email)

		require.Equal(t, http.StatusOK, f.get(t, server.RouteHome).status)

		_, status = f.sessionAPI(t, http.MethodGet, nil)
		require.True(t, status.Authenticated)
		require.Equal(t, session.User.ID, status.UserID)

		resp, status = f.sessionAPI(t, http.MethodDelete, nil)
		require.Equal(t, http.StatusOK, resp.status)
		require.False(t, status.Authenticated)
		require.Empty(t, f.sessionCookies(t))
		require.Equal(t, http.StatusSeeOther, f.get(t, server.RouteHome).status)
	})

	t.Run("forged tokens are not written", func(t *testing.T) {
		f := setupTestFixture(t)

		resp, status := f.sessionAPI(t, http.MethodPost, server.SessionTokens{
			AccessToken:  "not.a.jwt",
			RefreshToken: "not-a-refresh-token",
		})
		require.Equal(t, http.StatusUnauthorized, resp.status)
		require.False(t, status.Authenticated)
		require.Empty(t, f.sessionCookies(t))
	})

	t.Run("missing tokens", func(t *testing.T) {
		f := setupTestFixture(t)

		resp, _ := f.sessionAPI(t, http.MethodPost, server.SessionTokens{AccessToken: "only-access"})
		require.Equal(t, http.StatusBadRequest, resp.status)
	})

	t.Run("malformed body", func(t *testing.T) {
		f := setupTestFixture(t)
		req, err := http.NewRequest(http.MethodPost, f.app.URL+server.RouteAPISession, strings.NewReader(`{"access_token":`))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")

		resp := f.do(t, f.client, req)
		require.Equal(t, http.StatusBadRequest, resp.status)
		require.Contains(t, resp.body, "invalid request body")
	})

	t.Run("cross site form posts are refused", func(t *testing.T) {
		f := setupTestFixture(t)
		session := providerSession(t, f)
		body := `{"access_token":"` + session.AccessToken + `","refresh_token":"` + session.RefreshToken + `"}`

		post := func(contentType, origin string) response {
			req, err := http.NewRequest(http.MethodPost, f.app.URL+server.RouteAPISession, strings.NewReader(body))
			require.NoError(t, err)
			req.Header.Set("Content-Type", contentType)
			if origin != "" {
				req.Header.Set("Origin", origin)
			}
			return f.do(t, f.client, req)
		}

		resp := post("text/plain", "")
		require.Equal(t, http.StatusUnsupportedMediaType, resp.status)
		require.Empty(t, f.sessionCookies(t))

		resp = post("application/json", "https://evil.example.com")
		require.Equal(t, http.StatusForbidden, resp.status)
		require.Empty(t, f.sessionCookies(t))

		resp = post("application/json; charset=utf-8", "https://spa.example.com")
		require.Equal(t, http.StatusOK, resp.status)
		require.NotEmpty(t, f.sessionCookies(t))
	})
}

func TestSessionAPI_CORS(t *testing.T) {
	f := setupTestFixture(t)

	preflight := func(origin string) response {
		req, err := http.NewRequest(http.MethodOptions, f.app.URL+server.RouteAPISession, nil)
		require.NoError(t, err)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		return f.do(t, f.client, req)
	}

	allowed := preflight("https://spa.example.com")
	require.Equal(t, http.StatusNoContent, allowed.status)
	require.Equal(t, "https://spa.example.com", allowed.header.Get("Access-Control-Allow-Origin"))
	require.Equal(t, "true", allowed.header.Get("Access-Control-Allow-Credentials"))
	require.Contains(t, allowed.header.Get("Access-Control-Allow-Methods"), http.MethodDelete)

	denied := preflight("https://evil.example.com")
	require.Equal(t, http.StatusNoContent, denied.status)
	require.Empty(t, denied.header.Get("Access-Control-Allow-Origin"))
}

func TestHealthAndValidatePassword(t *testing.T) {
	f := setupTestFixture(t)

	resp := f.get(t, server.RouteHealth)
	require.Equal(t, http.StatusOK, resp.status)
	require.JSONEq(t, `{"status":"ok"}`, resp.body)

	resp = f.postForm(t, server.RouteAPIValidatePassword, url.Values{"password": {"short"}})
	require.Equal(t, http.StatusOK, resp.status)
	require.Equal(t, "passwordInvalid", resp.header.Get("HX-Trigger"))
	require.Contains(t, resp.body, "at least 8 characters")

	resp = f.postForm(t, server.RouteAPIValidatePassword, url.Values{"password": {"Password1"}})
	require.Equal(t, "passwordValid", resp.header.Get("HX-Trigger"))
}

func TestUnknownPathIsNotFound(t *testing.T) {
	f := setupTestFixture(t)

	resp := f.get(t, "/does-not-exist")
	require.Equal(t, http.StatusNotFound, resp.status)
}

func TestResponsesCarryRequestID(t *testing.T) {
	f := setupTestFixture(t)

	resp := f.get(t, server.RouteSignIn)
	require.NotEmpty(t, resp.header.Get("X-Request-ID"))
	require.Equal(t, "SAMEORIGIN", resp.header.Get("X-Frame-Options"))
}

// providerWithoutEmail answers every call with a session whose user has no email.
func providerWithoutEmail(http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"a","refresh_token":"r","token_type":"bearer","expires_in":3600,"user":{"id":"u1"}}`))
	})
}

func TestSignIn_UnmappableSessionLeavesNoCookie(t *testing.T) {
	f := setupTestFixture(t, withoutLocalVerification(), withProvider(providerWithoutEmail))

	resp := f.signIn(t, testEmail, testPassword)
	require.Equal(t, http.StatusOK, resp.status)
	require.Contains(t, resp.body, "Something went wrong")
	require.Empty(t, f.sessionCookies(t))

	resp = f.get(t, server.RouteHome)
	require.Equal(t, http.StatusSeeOther, resp.status)
	require.Equal(t, server.RouteSignIn, resp.location)
}

func TestProtectedPage_UnmappableUserClearsSession(t *testing.T) {
	var stripEmail atomic.Bool
	f := setupTestFixture(t, withoutLocalVerification(), withProvider(func(dp http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if stripEmail.Load() && r.URL.Path == "/user" {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"id":"u1"}`))
				return
			}
			dp.ServeHTTP(w, r)
		})
	}))

	resp := f.signIn(t, testEmail, testPassword)
	require.Equal(t, http.StatusSeeOther, resp.status)
	require.NotEmpty(t, f.sessionCookies(t))

	stripEmail.Store(true)
	resp = f.get(t, server.RouteHome)
	require.Equal(t, http.StatusSeeOther, resp.status)
	require.Equal(t, server.RouteSignIn, resp.location)
	require.Empty(t, f.sessionCookies(t))

	resp = f.get(t, server.RouteHome)
	require.Equal(t, http.StatusSeeOther, resp.status)
	require.Equal(t, server.RouteSignIn, resp.location)
}
