// Package gotrue is a client for a GoTrue compatible identity provider.
//
// A Client owns one session at a time, persists it in a Storage and tells
// subscribers about every change through OnAuthStateChange. Browser style
// clients use a MemoryStorage or FileStorage; request scoped server clients use
// a Storage backed by the request's cookies.
package gotrue

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const (
	defaultTimeout = 10 * time.Second
	maxBodySize    = 1 << 20
	// expiryMargin is how long before expiry a session counts as expired.
	expiryMargin = 10 * time.Second
)

type Option func(c *Client)

// WithHTTPClient replaces the default http client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithStorage sets where the session is persisted. Defaults to a MemoryStorage.
func WithStorage(s Storage) Option {
	return func(c *Client) {
		c.storage = s
	}
}

// WithStorageKey overrides the key the session is stored under.
func WithStorageKey(key string) Option {
	return func(c *Client) {
		c.storageKey = key
	}
}

// WithClock overrides time.Now for expiry decisions.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// Client talks to the provider's HTTP API.
type Client struct {
	baseURL    *url.URL
	apiKey     string
	httpClient *http.Client
	storage    Storage
	storageKey string
	now        func() time.Time

	refreshLock sync.Mutex

	subsLock    sync.RWMutex
	subs        map[uint64]ChangeCallback
	subOrder    []uint64
	nextSubID   uint64
	initialized bool
}

// New creates a client for the provider at baseURL (for example
// https://project.example.com/auth/v1) using the public api key.
func New(baseURL, apiKey string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "[gotrue.New] parse base url")
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("[gotrue.New] base url %q must be absolute", baseURL)
	}
	if apiKey == "" {
		return nil, errors.New("[gotrue.New] api key is required")
	}

	c := &Client{
		baseURL:    u,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultTimeout},
		now:        time.Now,
		subs:       make(map[uint64]ChangeCallback),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.storage == nil {
		c.storage = NewMemoryStorage()
	}
	if c.storageKey == "" {
		c.storageKey = DefaultStorageKey(u)
	}
	return c, nil
}

// DefaultStorageKey derives the storage key from the provider host, so that
// clients of different projects never share a slot.
func DefaultStorageKey(u *url.URL) string {
	host := u.Hostname()
	if i := strings.IndexByte(host, '.'); i > 0 {
		host = host[:i]
	}
	return "sb-" + host + "-auth-token"
}

// StorageKey is the key the session is persisted under.
func (c *Client) StorageKey() string {
	return c.storageKey
}

// Initialize reads any persisted session and announces it to subscribers with
// INITIAL_SESSION. Only the first call has an effect.
func (c *Client) Initialize(ctx context.Context) error {
	session, err := c.loadSession(ctx)

	c.subsLock.Lock()
	already := c.initialized
	c.initialized = true
	c.subsLock.Unlock()
	if already {
		return nil
	}

	c.emit(EventInitialSession, session)
	return err
}

// SignInWithPassword exchanges credentials for a session and persists it.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	var session Session
	query := url.Values{"grant_type": {"password"}}
	if err := c.do(ctx, nil, http.MethodPost, "token", query, credentials{Email: email, Password: password}, &session); err != nil {
		return nil, err
	}
	session.normalizeExpiry(c.now())

	if err := c.saveSession(ctx, &session); err != nil {
		return nil, err
	}
	c.emit(EventSignedIn, &session)
	return session.clone(), nil
}

// SignUp registers a user. The returned session, if any, is NOT persisted:
// callers that want the new user signed in must sign in explicitly.
func (c *Client) SignUp(ctx context.Context, email, password, redirectTo string) (*SignUpResponse, error) {
	var query url.Values
	if redirectTo != "" {
		query = url.Values{"redirect_to": {redirectTo}}
	}

	var raw json.RawMessage
	if err := c.do(ctx, nil, http.MethodPost, "signup", query, credentials{Email: email, Password: password}, &raw); err != nil {
		return nil, err
	}

	var session Session
	if err := json.Unmarshal(raw, &session); err == nil && session.AccessToken != "" {
		session.normalizeExpiry(c.now())
		return &SignUpResponse{User: session.User, Session: &session}, nil
	}

	var user User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, errors.Wrap(err, "[Client.SignUp] decode user")
	}
	return &SignUpResponse{User: &user}, nil
}

// SignOut revokes the stored session at the provider and removes it locally.
// A provider reply saying the session is already gone counts as success.
func (c *Client) SignOut(ctx context.Context) error {
	session, err := c.loadSession(ctx)
	if err != nil {
		return err
	}

	if session != nil {
		err := c.do(ctx, c.bearerClient(ctx, session), http.MethodPost, "logout", nil, nil, nil)
		var apiErr *APIError
		if err != nil && !(errors.As(err, &apiErr) && isGone(apiErr.Status)) {
			return err
		}
	}

	if err := c.removeSession(ctx); err != nil {
		return err
	}
	c.emit(EventSignedOut, nil)
	return nil
}

func isGone(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden || status == http.StatusNotFound
}

// Session returns the stored session, refreshing it first when it is expired
// or about to be. It returns nil without error when there is no session or
// the provider refused the refresh token.
func (c *Client) Session(ctx context.Context) (*Session, error) {
	c.refreshLock.Lock()
	defer c.refreshLock.Unlock()

	session, err := c.loadSession(ctx)
	if err != nil || session == nil {
		return nil, err
	}
	if !c.expiresSoon(session) {
		return session, nil
	}
	return c.refreshLocked(ctx, session)
}

// RefreshSession exchanges the stored refresh token for a new session even if
// the current one is still valid.
func (c *Client) RefreshSession(ctx context.Context) (*Session, error) {
	c.refreshLock.Lock()
	defer c.refreshLock.Unlock()

	session, err := c.loadSession(ctx)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionMissing
	}
	return c.refreshLocked(ctx, session)
}

func (c *Client) refreshLocked(ctx context.Context, session *Session) (*Session, error) {
	if session.RefreshToken == "" {
		return nil, c.dropSession(ctx)
	}

	refreshed, err := c.refresh(ctx, session.RefreshToken)
	if IsClientError(err) {
		log.Info().Err(err).Msg("refresh token rejected, signing out")
		return nil, c.dropSession(ctx)
	}
	if err != nil {
		return nil, err
	}

	if err := c.saveSession(ctx, refreshed); err != nil {
		return nil, err
	}
	c.emit(EventTokenRefreshed, refreshed)
	return refreshed.clone(), nil
}

func (c *Client) refresh(ctx context.Context, refreshToken string) (*Session, error) {
	var session Session
	query := url.Values{"grant_type": {"refresh_token"}}
	if err := c.do(ctx, nil, http.MethodPost, "token", query, refreshRequest{RefreshToken: refreshToken}, &session); err != nil {
		return nil, err
	}
	session.normalizeExpiry(c.now())
	return &session, nil
}

// DiscardSession removes the stored session without contacting the provider
// and emits SIGNED_OUT.
func (c *Client) DiscardSession(ctx context.Context) error {
	c.refreshLock.Lock()
	defer c.refreshLock.Unlock()
	return c.dropSession(ctx)
}

func (c *Client) dropSession(ctx context.Context) error {
	if err := c.removeSession(ctx); err != nil {
		return err
	}
	c.emit(EventSignedOut, nil)
	return nil
}

// SetSession adopts tokens issued elsewhere. The access token is checked with
// the provider, or refreshed first when it has already expired.
func (c *Client) SetSession(ctx context.Context, accessToken, refreshToken string) (*Session, error) {
	if accessToken == "" || refreshToken == "" {
		return nil, ErrSessionMissing
	}

	c.refreshLock.Lock()
	defer c.refreshLock.Unlock()

	session := &Session{AccessToken: accessToken, RefreshToken: refreshToken, TokenType: "bearer"}
	if exp := tokenExpiry(accessToken); !exp.IsZero() {
		session.ExpiresAt = exp.Unix()
	}

	if c.expiresSoon(session) {
		refreshed, err := c.refresh(ctx, refreshToken)
		if err != nil {
			return nil, err
		}
		session = refreshed
	} else {
		user, err := c.UserForToken(ctx, accessToken)
		if err != nil {
			return nil, err
		}
		session.User = user
		session.normalizeExpiry(c.now())
	}

	if err := c.saveSession(ctx, session); err != nil {
		return nil, err
	}
	c.emit(EventSignedIn, session)
	return session.clone(), nil
}

// User fetches the signed in user from the provider. It returns nil without
// error when there is no session.
func (c *Client) User(ctx context.Context) (*User, error) {
	session, err := c.Session(ctx)
	if err != nil || session == nil {
		return nil, err
	}
	return c.UserForToken(ctx, session.AccessToken)
}

// UserForToken asks the provider who accessToken belongs to.
func (c *Client) UserForToken(ctx context.Context, accessToken string) (*User, error) {
	var user User
	session := &Session{AccessToken: accessToken}
	if err := c.do(ctx, c.bearerClient(ctx, session), http.MethodGet, "user", nil, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateUser changes attributes of the signed in user.
func (c *Client) UpdateUser(ctx context.Context, attrs UserAttributes) (*User, error) {
	session, err := c.Session(ctx)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionMissing
	}

	var user User
	if err := c.do(ctx, c.bearerClient(ctx, session), http.MethodPut, "user", nil, attrs, &user); err != nil {
		return nil, err
	}

	session.User = &user
	if err := c.saveSession(ctx, session); err != nil {
		return nil, err
	}
	c.emit(EventUserUpdated, session)
	return &user, nil
}

// ResetPasswordForEmail asks the provider to email a recovery link.
func (c *Client) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	var query url.Values
	if redirectTo != "" {
		query = url.Values{"redirect_to": {redirectTo}}
	}
	return c.do(ctx, nil, http.MethodPost, "recover", query, recoverRequest{Email: email}, nil)
}

// VerifyOTP redeems an emailed token hash for a session and persists it.
func (c *Client) VerifyOTP(ctx context.Context, params VerifyParams) (*Session, error) {
	var session Session
	if err := c.do(ctx, nil, http.MethodPost, "verify", nil, params, &session); err != nil {
		return nil, err
	}
	if session.AccessToken == "" {
		return nil, errors.New("[Client.VerifyOTP] provider returned no session")
	}
	session.normalizeExpiry(c.now())

	if err := c.saveSession(ctx, &session); err != nil {
		return nil, err
	}
	if params.Type == VerifyTypeRecovery {
		c.emit(EventPasswordRecovery, &session)
	} else {
		c.emit(EventSignedIn, &session)
	}
	return session.clone(), nil
}

func (c *Client) expiresSoon(s *Session) bool {
	if s.ExpiresAt == 0 {
		return false
	}
	return !c.now().Add(expiryMargin).Before(time.Unix(s.ExpiresAt, 0))
}

// tokenExpiry reads the exp claim without verifying the signature; the
// provider verifies the token itself.
func tokenExpiry(accessToken string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

func (c *Client) bearerClient(ctx context.Context, session *Session) *http.Client {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(session.Token()))
}

// do sends one API request. A nil hc means the call is authorized with the
// api key alone.
func (c *Client) do(ctx context.Context, hc *http.Client, method, path string, query url.Values, in, out any) error {
	u := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return errors.Wrapf(err, "[Client] encode %s request", path)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return errors.Wrapf(err, "[Client] build %s request", path)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if hc == nil {
		hc = c.httpClient
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return errors.Wrapf(err, "[Client] %s %s", method, path)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return errors.Wrapf(err, "[Client] read %s response", path)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return parseAPIError(resp.StatusCode, data)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	return errors.Wrapf(json.Unmarshal(data, out), "[Client] decode %s response", path)
}

func (c *Client) loadSession(ctx context.Context) (*Session, error) {
	raw, err := c.storage.Get(ctx, c.storageKey)
	if err != nil {
		return nil, errors.Wrap(err, "[Client] load session")
	}
	if raw == "" {
		return nil, nil
	}

	var session Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil || session.AccessToken == "" {
		log.Warn().Err(err).Str("key", c.storageKey).Msg("discarding unreadable stored session")
		return nil, c.removeSession(ctx)
	}
	return &session, nil
}

func (c *Client) saveSession(ctx context.Context, session *Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return errors.Wrap(err, "[Client] encode session")
	}
	return errors.Wrap(c.storage.Set(ctx, c.storageKey, string(data)), "[Client] save session")
}

func (c *Client) removeSession(ctx context.Context) error {
	return errors.Wrap(c.storage.Remove(ctx, c.storageKey), "[Client] remove session")
}
