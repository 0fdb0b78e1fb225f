package devprovider

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	refreshTokenLength = 32
	// Audience and Role are the aud and role claims of every access token.
	Audience = "authenticated"
	Role     = "authenticated"
)

// AccessClaims are the claims carried by an access token.
type AccessClaims struct {
	Email     string `json:"email"`
	Role      string `json:"role"`
	SessionID string `json:"session_id"`
	jwtlib.RegisteredClaims
}

type storedRefreshToken struct {
	Token     string
	UserID    string
	SessionID string
	Iat       time.Time
	Revoked   bool
}

func (p *Provider) createAccessToken(user *userRecord, sessionID string) (string, time.Time, error) {
	now := p.now()
	expiresAt := now.Add(p.accessTokenTTL)
	claims := AccessClaims{
		Email:     user.Email,
		Role:      Role,
		SessionID: sessionID,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   user.ID,
			Audience:  jwtlib.ClaimStrings{Audience},
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(p.jwtSecret)
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, "[Provider.createAccessToken] sign")
	}
	return signed, expiresAt, nil
}

// parseAccessToken verifies the signature and expiry of an access token.
func (p *Provider) parseAccessToken(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	_, err := jwtlib.ParseWithClaims(token, claims, func(*jwtlib.Token) (any, error) {
		return p.jwtSecret, nil
	},
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithAudience(Audience),
		jwtlib.WithTimeFunc(p.now),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// createRefreshToken issues an opaque token for sessionID. Callers hold p.lock.
func (p *Provider) createRefreshToken(userID, sessionID string) (string, error) {
	tokenBytes := make([]byte, refreshTokenLength)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", errors.Wrap(err, "[Provider.createRefreshToken] generate random bytes")
	}
	token := hex.EncodeToString(tokenBytes)
	p.refreshTokens[token] = &storedRefreshToken{
		Token:     token,
		UserID:    userID,
		SessionID: sessionID,
		Iat:       p.now(),
	}
	return token, nil
}

func randomTokenHash() (string, error) {
	b := make([]byte, 28)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Wrap(err, "[randomTokenHash] generate random bytes")
	}
	return hex.EncodeToString(b), nil
}
