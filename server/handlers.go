package server

import (
	"encoding/json"
	"mime"
	"net/http"

	"github.com/jrsteele09/go-auth-bridge/gotrue"
	liberrors "github.com/jrsteele09/go-auth-bridge/internal/errors"
	"github.com/rs/zerolog/log"
)

// SessionTokens is the body of POST /api/auth/session.
type SessionTokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// SessionStatus is the reply of the session API.
type SessionStatus struct {
	Authenticated bool   `json:"authenticated"`
	UserID        string `json:"user_id,omitempty"`
	Email         string `json:"email,omitempty"`
	ExpiresAt     int64  `json:"expires_at,omitempty"`
	Error         string `json:"error,omitempty"`
}

// SetSessionHandler mirrors a session obtained elsewhere into the cookie. The
// tokens are checked with the provider before anything is written.
func (s *Server) SetSessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var tokens SessionTokens
		if err := decodeJSONBody(w, r, &tokens); err != nil {
			log.Info().Err(err).Msg("session body rejected")
			if liberrors.Is(err, liberrors.ErrUnsupportedMediaType) {
				writeJSON(w, http.StatusUnsupportedMediaType, SessionStatus{Error: "content type must be application/json"})
				return
			}
			writeJSON(w, http.StatusBadRequest, SessionStatus{Error: "invalid request body"})
			return
		}
		if tokens.AccessToken == "" || tokens.RefreshToken == "" {
			writeJSON(w, http.StatusBadRequest, SessionStatus{Error: "access_token and refresh_token are required"})
			return
		}

		ra, err := s.requestAuth(w, r)
		if err != nil {
			log.Err(err).Msg("Failed to create request auth")
			writeJSON(w, http.StatusInternalServerError, SessionStatus{Error: defaultErrorMessage})
			return
		}

		session, err := ra.client.SetSession(r.Context(), tokens.AccessToken, tokens.RefreshToken)
		if err != nil {
			s.metrics.RecordAuthOperation(opSetSession, "")
			if gotrue.IsClientError(err) {
				log.Info().Err(err).Msg("mirrored session rejected")
				writeJSON(w, http.StatusUnauthorized, SessionStatus{Error: "session rejected"})
				return
			}
			log.Err(err).Msg("mirroring session failed")
			writeJSON(w, http.StatusBadGateway, SessionStatus{Error: defaultErrorMessage})
			return
		}
		s.metrics.RecordAuthOperation(opSetSession, outcomeSuccess)

		status := SessionStatus{Authenticated: true, ExpiresAt: session.ExpiresAt}
		if session.User != nil {
			status.UserID = session.User.ID
			status.Email = session.User.Email
		}
		writeJSON(w, http.StatusOK, status)
	}
}

// ClearSessionHandler expires the session cookie (DELETE /api/auth/session)
func (s *Server) ClearSessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ra, err := s.requestAuth(w, r)
		if err != nil {
			log.Err(err).Msg("Failed to create request auth")
			writeJSON(w, http.StatusInternalServerError, SessionStatus{Error: defaultErrorMessage})
			return
		}
		ra.clearSession(r.Context())
		writeJSON(w, http.StatusOK, SessionStatus{Authenticated: false})
	}
}

// SessionStatusHandler reports what the server sees in the cookie (GET /api/auth/session)
func (s *Server) SessionStatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, _, err := s.readSession(w, r)
		if err != nil {
			log.Err(err).Msg("session check failed")
			writeJSON(w, http.StatusServiceUnavailable, SessionStatus{Error: defaultErrorMessage})
			return
		}
		if session == nil {
			writeJSON(w, http.StatusOK, SessionStatus{Authenticated: false})
			return
		}
		writeJSON(w, http.StatusOK, SessionStatus{
			Authenticated: true,
			UserID:        session.User.ID,
			Email:         session.User.Email,
			ExpiresAt:     session.ExpiresAt.Unix(),
		})
	}
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Err(err).Msg("Failed to encode response")
	}
}

// decodeJSONBody decodes an application/json body of at most 64KB into v.
// Other content types are refused, so a plain cross site form cannot post here.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) error {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != contentTypeJSON {
		return liberrors.Wrapf(liberrors.ErrUnsupportedMediaType, "content type %q", r.Header.Get("Content-Type"))
	}
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return liberrors.Wrapf(liberrors.ErrInvalidRequest, "%v", err)
	}
	return nil
}
