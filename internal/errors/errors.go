package errors

import (
	"errors"
	"fmt"
)

var (
	// Session cookie errors
	ErrInvalidCookie  = errors.New("invalid session cookie")
	ErrCookieTooLarge = errors.New("session cookie too large")

	// Token errors
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// Request errors
	ErrInvalidRequest       = errors.New("invalid request")
	ErrUnsupportedMediaType = errors.New("unsupported media type")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}
