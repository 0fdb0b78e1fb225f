package devprovider

import (
	"strings"
	"time"

	"github.com/jrsteele09/go-auth-bridge/gotrue"
	"github.com/jrsteele09/go-auth-bridge/internal/utils"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 6

type userRecord struct {
	ID               string
	Email            string
	PasswordHash     string
	IdentityID       string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	EmailConfirmedAt *time.Time
}

func (u *userRecord) confirmed() bool {
	return u.EmailConfirmedAt != nil
}

func (u *userRecord) wire() *gotrue.User {
	return &gotrue.User{
		ID:               u.ID,
		Email:            u.Email,
		CreatedAt:        utils.Ptr(u.CreatedAt),
		UpdatedAt:        utils.Ptr(u.UpdatedAt),
		EmailConfirmedAt: u.EmailConfirmedAt,
		Identities: []gotrue.Identity{{
			ID:         u.IdentityID,
			IdentityID: u.IdentityID,
			UserID:     u.ID,
			Provider:   "email",
		}},
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func checkPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
