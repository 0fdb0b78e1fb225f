package server

import (
	"context"
	"net/http"

	"github.com/jrsteele09/go-auth-bridge/auth"
	"github.com/rs/zerolog/log"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeySession stores the verified *auth.Session
	ContextKeySession ContextKey = "session"
	// ContextKeyRequestAuth stores the request's *requestAuth
	ContextKeyRequestAuth ContextKey = "request_auth"
)

// SessionFromContext returns the session stored by RequireSession, or nil.
func SessionFromContext(ctx context.Context) *auth.Session {
	session, _ := ctx.Value(ContextKeySession).(*auth.Session)
	return session
}

// requestAuth returns the auth stack the middleware already built for this
// request, so a session refreshed by the reader is the one handlers see.
func (s *Server) requestAuth(w http.ResponseWriter, r *http.Request) (*requestAuth, error) {
	if ra, ok := r.Context().Value(ContextKeyRequestAuth).(*requestAuth); ok {
		return ra, nil
	}
	return s.requests.forRequest(w, r)
}

// readSession verifies the session cookie and returns r with the session and
// its auth stack attached.
func (s *Server) readSession(w http.ResponseWriter, r *http.Request) (*auth.Session, *http.Request, error) {
	ra, err := s.requests.forRequest(w, r)
	if err != nil {
		return nil, r, err
	}
	session, err := s.sessions.read(r.Context(), ra)
	if err != nil {
		return nil, r, err
	}
	ctx := context.WithValue(r.Context(), ContextKeyRequestAuth, ra)
	if session != nil {
		ctx = context.WithValue(ctx, ContextKeySession, session)
	}
	return session, r.WithContext(ctx), nil
}

// RequireSession sends requests without a verified session to the sign in page.
func (s *Server) RequireSession() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			session, r, err := s.readSession(w, r)
			if err != nil {
				log.Err(err).Str("path", r.URL.Path).Msg("session check failed")
				http.Error(w, "Authentication is temporarily unavailable", http.StatusServiceUnavailable)
				return
			}
			if session == nil {
				redirectSuccess(w, r, RouteSignIn)
				return
			}
			next(w, r)
		}
	}
}

// RedirectIfAuthenticated keeps signed in users away from the sign in and
// sign up pages. A failed check shows the page.
func (s *Server) RedirectIfAuthenticated() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			session, r, err := s.readSession(w, r)
			if err != nil {
				log.Err(err).Str("path", r.URL.Path).Msg("session check failed")
				next(w, r)
				return
			}
			if session != nil {
				redirectSuccess(w, r, RouteHome)
				return
			}
			next(w, r)
		}
	}
}
