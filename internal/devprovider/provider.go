// Package devprovider is an in-memory identity provider speaking the GoTrue
// HTTP API. It backs local development and the test suites; nothing is
// persisted across restarts.
package devprovider

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-bridge/gotrue"
	"github.com/jrsteele09/go-auth-bridge/internal/utils"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// DuplicateMode selects how sign up answers for an email that is already registered.
type DuplicateMode int

const (
	// DuplicateError replies 422 with error_code user_already_exists.
	DuplicateError DuplicateMode = iota
	// DuplicateObfuscated replies 200 with a fake user whose identity list is
	// empty, so the reply does not reveal whether the email is registered.
	DuplicateObfuscated
)

type Option func(p *Provider)

func WithAPIKey(key string) Option {
	return func(p *Provider) {
		p.apiKey = key
	}
}

func WithJWTSecret(secret string) Option {
	return func(p *Provider) {
		p.jwtSecret = []byte(secret)
	}
}

func WithAccessTokenTTL(ttl time.Duration) Option {
	return func(p *Provider) {
		p.accessTokenTTL = ttl
	}
}

// WithAutoConfirm makes sign up confirm the email immediately and return a session.
func WithAutoConfirm(autoConfirm bool) Option {
	return func(p *Provider) {
		p.autoConfirm = autoConfirm
	}
}

func WithDuplicateMode(mode DuplicateMode) Option {
	return func(p *Provider) {
		p.duplicates = mode
	}
}

// WithSiteURL is the default redirect target of emailed links.
func WithSiteURL(siteURL string) Option {
	return func(p *Provider) {
		p.siteURL = siteURL
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Provider) {
		p.now = now
	}
}

// Provider is an http.Handler serving the GoTrue API at its root.
type Provider struct {
	apiKey         string
	jwtSecret      []byte
	accessTokenTTL time.Duration
	autoConfirm    bool
	duplicates     DuplicateMode
	siteURL        string
	now            func() time.Time

	lock          sync.RWMutex
	users         map[string]*userRecord // by id
	byEmail       map[string]string      // email to id
	sessions      map[string]string      // active session id to user id
	refreshTokens map[string]*storedRefreshToken
	emailTokens   map[string]*emailToken
	outbox        []Mail

	mux *http.ServeMux
}

var _ http.Handler = (*Provider)(nil)

type emailToken struct {
	Kind   MailKind
	UserID string
	Expiry time.Time
}

func New(opts ...Option) *Provider {
	p := &Provider{
		jwtSecret:      []byte("super-secret-jwt-token-with-at-least-32-characters"),
		accessTokenTTL: time.Hour,
		siteURL:        "http://localhost:8080",
		now:            time.Now,
		users:          make(map[string]*userRecord),
		byEmail:        make(map[string]string),
		sessions:       make(map[string]string),
		refreshTokens:  make(map[string]*storedRefreshToken),
		emailTokens:    make(map[string]*emailToken),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.mux = http.NewServeMux()
	p.mux.HandleFunc("POST /token", p.handleToken)
	p.mux.HandleFunc("POST /signup", p.handleSignUp)
	p.mux.HandleFunc("POST /logout", p.handleLogout)
	p.mux.HandleFunc("GET /user", p.handleGetUser)
	p.mux.HandleFunc("PUT /user", p.handleUpdateUser)
	p.mux.HandleFunc("POST /recover", p.handleRecover)
	p.mux.HandleFunc("POST /verify", p.handleVerify)
	p.mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"name": "devprovider"})
	})
	return p
}

func (p *Provider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if p.apiKey != "" && r.Header.Get("apikey") != p.apiKey {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid API key"})
		return
	}
	p.mux.ServeHTTP(w, r)
}

// CreateUser registers a user directly, bypassing sign up. confirmed controls
// whether the email counts as verified.
func (p *Provider) CreateUser(email, password string, confirmed bool) (string, error) {
	hash, err := hashPassword(password)
	if err != nil {
		return "", errors.Wrap(err, "[Provider.CreateUser] hash password")
	}

	p.lock.Lock()
	defer p.lock.Unlock()

	email = normalizeEmail(email)
	if _, ok := p.byEmail[email]; ok {
		return "", errors.Errorf("[Provider.CreateUser] %s already exists", email)
	}
	u := p.insertUserLocked(email, hash, confirmed)
	return u.ID, nil
}

func (p *Provider) insertUserLocked(email, hash string, confirmed bool) *userRecord {
	now := p.now().UTC()
	u := &userRecord{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		IdentityID:   uuid.NewString(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if confirmed {
		u.EmailConfirmedAt = utils.Ptr(now)
	}
	p.users[u.ID] = u
	p.byEmail[email] = u.ID
	return u
}

func (p *Provider) handleToken(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Query().Get("grant_type") {
	case "password":
		p.passwordGrant(w, r)
	case "refresh_token":
		p.refreshGrant(w, r)
	default:
		writeError(w, http.StatusBadRequest, "validation_failed", "Unsupported grant type")
	}
}

type credentialsBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (p *Provider) passwordGrant(w http.ResponseWriter, r *http.Request) {
	var body credentialsBody
	if !decodeBody(w, r, &body) {
		return
	}

	p.lock.RLock()
	var u *userRecord
	if found := p.userByEmailLocked(body.Email); found != nil {
		snapshot := *found
		u = &snapshot
	}
	p.lock.RUnlock()

	if u == nil || !checkPasswordHash(body.Password, u.PasswordHash) {
		writeError(w, http.StatusBadRequest, "invalid_credentials", "Invalid login credentials")
		return
	}
	if !u.confirmed() {
		writeError(w, http.StatusBadRequest, "email_not_confirmed", "Email not confirmed")
		return
	}
	p.writeNewSession(w, u)
}

func (p *Provider) refreshGrant(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	p.lock.Lock()
	defer p.lock.Unlock()

	rt, ok := p.refreshTokens[body.RefreshToken]
	if !ok || rt.Revoked {
		writeError(w, http.StatusBadRequest, "refresh_token_not_found", "Invalid Refresh Token: Refresh Token Not Found")
		return
	}
	if _, active := p.sessions[rt.SessionID]; !active {
		writeError(w, http.StatusBadRequest, "session_not_found", "Session from session_id claim in JWT does not exist")
		return
	}
	u, ok := p.users[rt.UserID]
	if !ok {
		writeError(w, http.StatusBadRequest, "user_not_found", "User not found")
		return
	}

	rt.Revoked = true
	session, err := p.issueSessionLocked(u, rt.SessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "unexpected_failure", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (p *Provider) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var body credentialsBody
	if !decodeBody(w, r, &body) {
		return
	}
	email := normalizeEmail(body.Email)
	if email == "" || !strings.Contains(email, "@") {
		writeError(w, http.StatusBadRequest, "validation_failed", "Unable to validate email address: invalid format")
		return
	}
	if len(body.Password) < minPasswordLength {
		writeError(w, http.StatusUnprocessableEntity, "weak_password", "Password should be at least 6 characters.")
		return
	}

	hash, err := hashPassword(body.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "unexpected_failure", "Unable to hash password")
		return
	}

	p.lock.Lock()
	defer p.lock.Unlock()

	if existing := p.userByEmailLocked(email); existing != nil {
		if p.duplicates == DuplicateError {
			writeError(w, http.StatusUnprocessableEntity, "user_already_exists", "User already registered")
			return
		}
		now := p.now().UTC()
		writeJSON(w, http.StatusOK, &gotrue.User{
			ID:         uuid.NewString(),
			Email:      email,
			CreatedAt:  &now,
			UpdatedAt:  &now,
			Identities: []gotrue.Identity{},
		})
		return
	}

	u := p.insertUserLocked(email, hash, p.autoConfirm)
	if p.autoConfirm {
		session, err := p.issueSessionLocked(u, uuid.NewString())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "unexpected_failure", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, session)
		return
	}

	if err := p.sendMailLocked(MailConfirmSignup, u, r.URL.Query().Get("redirect_to")); err != nil {
		writeError(w, http.StatusInternalServerError, "unexpected_failure", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, u.wire())
}

func (p *Provider) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims, ok := p.authenticate(w, r)
	if !ok {
		return
	}

	p.lock.Lock()
	delete(p.sessions, claims.SessionID)
	for _, rt := range p.refreshTokens {
		if rt.SessionID == claims.SessionID {
			rt.Revoked = true
		}
	}
	p.lock.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func (p *Provider) handleGetUser(w http.ResponseWriter, r *http.Request) {
	claims, ok := p.authenticate(w, r)
	if !ok {
		return
	}

	p.lock.RLock()
	u, found := p.users[claims.Subject]
	var wire *gotrue.User
	if found {
		wire = u.wire()
	}
	p.lock.RUnlock()
	if !found {
		writeError(w, http.StatusForbidden, "user_not_found", "User from sub claim in JWT does not exist")
		return
	}
	writeJSON(w, http.StatusOK, wire)
}

func (p *Provider) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	claims, ok := p.authenticate(w, r)
	if !ok {
		return
	}

	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Email != "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "Email changes are not supported")
		return
	}
	if len(body.Password) < minPasswordLength {
		writeError(w, http.StatusUnprocessableEntity, "weak_password", "Password should be at least 6 characters.")
		return
	}

	p.lock.RLock()
	u, found := p.users[claims.Subject]
	var currentHash string
	if found {
		currentHash = u.PasswordHash
	}
	p.lock.RUnlock()
	if !found {
		writeError(w, http.StatusForbidden, "user_not_found", "User from sub claim in JWT does not exist")
		return
	}
	if checkPasswordHash(body.Password, currentHash) {
		writeError(w, http.StatusUnprocessableEntity, "same_password", "New password should be different from the old password.")
		return
	}

	hash, err := hashPassword(body.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "unexpected_failure", "Unable to hash password")
		return
	}

	p.lock.Lock()
	u.PasswordHash = hash
	u.UpdatedAt = p.now().UTC()
	wire := u.wire()
	p.lock.Unlock()

	writeJSON(w, http.StatusOK, wire)
}

func (p *Provider) handleRecover(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	p.lock.Lock()
	defer p.lock.Unlock()

	// Unknown emails get the same reply so the endpoint cannot be used to probe accounts.
	if u := p.userByEmailLocked(body.Email); u != nil {
		if err := p.sendMailLocked(MailRecovery, u, r.URL.Query().Get("redirect_to")); err != nil {
			writeError(w, http.StatusInternalServerError, "unexpected_failure", err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (p *Provider) handleVerify(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Type      string `json:"type"`
		TokenHash string `json:"token_hash"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	p.lock.Lock()
	defer p.lock.Unlock()

	tok, ok := p.emailTokens[body.TokenHash]
	if !ok || !tok.Kind.matches(body.Type) || p.now().After(tok.Expiry) {
		writeError(w, http.StatusForbidden, "otp_expired", "Email link is invalid or has expired")
		return
	}
	delete(p.emailTokens, body.TokenHash)

	u, ok := p.users[tok.UserID]
	if !ok {
		writeError(w, http.StatusForbidden, "otp_expired", "Email link is invalid or has expired")
		return
	}
	if !u.confirmed() {
		u.EmailConfirmedAt = utils.Ptr(p.now().UTC())
	}

	session, err := p.issueSessionLocked(u, uuid.NewString())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "unexpected_failure", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// authenticate checks the bearer access token and that its session is still active.
func (p *Provider) authenticate(w http.ResponseWriter, r *http.Request) (*AccessClaims, bool) {
	token, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !found || token == "" {
		writeError(w, http.StatusUnauthorized, "no_authorization", "This endpoint requires a Bearer token")
		return nil, false
	}

	claims, err := p.parseAccessToken(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "bad_jwt", "invalid JWT: unable to parse or verify signature, "+err.Error())
		return nil, false
	}

	p.lock.RLock()
	_, active := p.sessions[claims.SessionID]
	p.lock.RUnlock()
	if !active {
		writeError(w, http.StatusForbidden, "session_not_found", "Session from session_id claim in JWT does not exist")
		return nil, false
	}
	return claims, true
}

func (p *Provider) writeNewSession(w http.ResponseWriter, u *userRecord) {
	p.lock.Lock()
	session, err := p.issueSessionLocked(u, uuid.NewString())
	p.lock.Unlock()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "unexpected_failure", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (p *Provider) issueSessionLocked(u *userRecord, sessionID string) (*gotrue.Session, error) {
	access, expiresAt, err := p.createAccessToken(u, sessionID)
	if err != nil {
		return nil, err
	}
	refresh, err := p.createRefreshToken(u.ID, sessionID)
	if err != nil {
		return nil, err
	}
	p.sessions[sessionID] = u.ID

	return &gotrue.Session{
		AccessToken:  access,
		TokenType:    "bearer",
		ExpiresIn:    int64(p.accessTokenTTL / time.Second),
		ExpiresAt:    expiresAt.Unix(),
		RefreshToken: refresh,
		User:         u.wire(),
	}, nil
}

func (p *Provider) userByEmailLocked(email string) *userRecord {
	id, ok := p.byEmail[normalizeEmail(email)]
	if !ok {
		return nil
	}
	return p.users[id]
}

func (p *Provider) sendMailLocked(kind MailKind, u *userRecord, redirectTo string) error {
	tokenHash, err := randomTokenHash()
	if err != nil {
		return err
	}
	p.emailTokens[tokenHash] = &emailToken{Kind: kind, UserID: u.ID, Expiry: p.now().Add(time.Hour)}

	if redirectTo == "" {
		redirectTo = p.siteURL
	}
	link := redirectTo
	if target, err := url.Parse(redirectTo); err == nil {
		q := target.Query()
		q.Set("token_hash", tokenHash)
		q.Set("type", kind.verifyType())
		target.RawQuery = q.Encode()
		link = target.String()
	}

	mail := Mail{Kind: kind, To: u.Email, TokenHash: tokenHash, Link: link, SentAt: p.now()}
	p.outbox = append(p.outbox, mail)
	log.Info().Str("to", mail.To).Str("kind", string(kind)).Str("link", link).Msg("devprovider email captured")
	return nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "Could not parse request body as JSON")
		return false
	}
	return true
}

type errorReply struct {
	Code      int    `json:"code"`
	ErrorCode string `json:"error_code"`
	Msg       string `json:"msg"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorReply{Code: status, ErrorCode: code, Msg: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Err(err).Msg("devprovider: encode response")
	}
}
