package server

import (
	"context"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-auth-bridge/auth"
	"github.com/jrsteele09/go-auth-bridge/gotrue"
	liberrors "github.com/jrsteele09/go-auth-bridge/internal/errors"
	"github.com/jrsteele09/go-auth-bridge/internal/metrics"
	"github.com/jrsteele09/go-auth-bridge/provider"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const providerAudience = "authenticated"

// requestAuth is the auth stack of a single request. Its session lives only in
// the request's cookies, so nothing is shared between requests.
type requestAuth struct {
	client  *gotrue.Client
	storage *CookieStorage
	repo    *provider.Repository
	service *auth.Service
}

type requestAuthFactory struct {
	providerURL      string
	apiKey           string
	httpClient       *http.Client
	cookieName       string
	codec            *cookieCodec
	cookieOpts       cookieOptions
	emailRedirect    string
	recoveryRedirect string
	now              func() time.Time
}

func (f *requestAuthFactory) forRequest(w http.ResponseWriter, r *http.Request) (*requestAuth, error) {
	storage := newCookieStorage(w, r, f.codec, f.cookieOpts)
	client, err := gotrue.New(f.providerURL, f.apiKey,
		gotrue.WithHTTPClient(f.httpClient),
		gotrue.WithStorage(storage),
		gotrue.WithStorageKey(f.cookieName),
		gotrue.WithClock(f.now),
	)
	if err != nil {
		return nil, errors.Wrap(err, "[requestAuthFactory.forRequest] client")
	}
	repo := provider.NewRepository(client,
		provider.WithEmailRedirect(f.emailRedirect),
		provider.WithRecoveryRedirect(f.recoveryRedirect),
		provider.WithClock(f.now),
	)
	service, err := auth.NewService(repo)
	if err != nil {
		return nil, errors.Wrap(err, "[requestAuthFactory.forRequest] service")
	}
	return &requestAuth{client: client, storage: storage, repo: repo, service: service}, nil
}

// clearSession expires the session cookies on the response.
func (ra *requestAuth) clearSession(ctx context.Context) {
	if err := ra.storage.Remove(ctx, ra.client.StorageKey()); err != nil {
		log.Err(err).Msg("failed to clear session cookie")
	}
}

// SessionReader answers "is this request signed in" from the session cookie
// alone. It never consults a client side state store: the cookie is the only
// medium both sides share, and the session in it is re-verified on every read.
type SessionReader struct {
	factory   *requestAuthFactory
	jwtSecret []byte
	metrics   metrics.Recorder
	now       func() time.Time
}

// Read returns the verified session of the request or nil. An expired access
// token is refreshed and the new session is written back to the cookie; a
// session the provider no longer accepts is cleared. Errors are transport or
// provider failures, not "signed out".
func (sr *SessionReader) Read(w http.ResponseWriter, r *http.Request) (*auth.Session, error) {
	ra, err := sr.factory.forRequest(w, r)
	if err != nil {
		return nil, err
	}
	return sr.read(r.Context(), ra)
}

func (sr *SessionReader) read(ctx context.Context, ra *requestAuth) (*auth.Session, error) {
	start := sr.now()
	refreshed := false
	sub := ra.client.OnAuthStateChange(func(event gotrue.Event, _ *gotrue.Session) {
		if event == gotrue.EventTokenRefreshed {
			refreshed = true
		}
	})
	defer sub.Unsubscribe()

	session, err := ra.repo.GetSession(ctx)
	if err == nil && session != nil {
		err = sr.verify(ctx, ra, session)
	}
	if err != nil {
		if rejectedSession(err) {
			log.Info().Err(err).Msg("session cookie rejected")
			ra.clearSession(ctx)
			sr.metrics.RecordSessionCheck(metrics.SessionInvalid, sr.now().Sub(start))
			return nil, nil
		}
		return nil, err
	}
	if session == nil {
		sr.metrics.RecordSessionCheck(metrics.SessionAnonymous, sr.now().Sub(start))
		return nil, nil
	}

	result := metrics.SessionAuthenticated
	if refreshed {
		result = metrics.SessionRefreshed
	}
	sr.metrics.RecordSessionCheck(result, sr.now().Sub(start))
	return session, nil
}

// verify checks the access token locally when the provider's signing secret is
// known, and otherwise asks the provider who the token belongs to.
func (sr *SessionReader) verify(ctx context.Context, ra *requestAuth, session *auth.Session) error {
	if len(sr.jwtSecret) > 0 {
		return sr.verifyLocally(session)
	}

	user, err := ra.repo.GetCurrentUser(ctx)
	if err != nil {
		return err
	}
	if user == nil || user.ID != session.User.ID {
		return liberrors.Wrapf(liberrors.ErrInvalidToken, "token does not belong to user %s", session.User.ID)
	}
	session.User = *user
	return nil
}

func (sr *SessionReader) verifyLocally(session *auth.Session) error {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(session.AccessToken, claims, func(*jwt.Token) (any, error) {
		return sr.jwtSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(providerAudience),
		jwt.WithTimeFunc(sr.now),
	)
	if liberrors.Is(err, jwt.ErrTokenExpired) {
		return liberrors.Wrapf(liberrors.ErrTokenExpired, "%v", err)
	}
	if err != nil {
		return liberrors.Wrapf(liberrors.ErrInvalidToken, "%v", err)
	}
	if claims.Subject != session.User.ID {
		return liberrors.Wrapf(liberrors.ErrInvalidToken, "subject %s does not match user %s", claims.Subject, session.User.ID)
	}
	return nil
}

// rejectedSession reports a session that will never verify or map again, as
// opposed to a failure to reach the provider.
func rejectedSession(err error) bool {
	return liberrors.Is(err, liberrors.ErrInvalidToken) ||
		liberrors.Is(err, liberrors.ErrTokenExpired) ||
		liberrors.Is(err, auth.MissingEmailErr) ||
		liberrors.Is(err, auth.MissingUserErr) ||
		gotrue.IsUnauthorized(err)
}
