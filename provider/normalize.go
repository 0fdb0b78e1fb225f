package provider

import (
	"errors"
	"strings"

	"github.com/jrsteele09/go-auth-bridge/auth"
	"github.com/jrsteele09/go-auth-bridge/gotrue"
)

// This file is the only place provider failures are classified. Native codes
// always win. The message text patterns below are a compatibility shim for
// provider versions that reply with free text only; revisit them whenever the
// provider's wording changes.

const duplicateUserMessage = "User already registered"

var (
	signInTextCodes = []struct {
		substring string
		code      auth.Code
	}{
		{"email not confirmed", auth.CodeEmailNotConfirmed},
		{"invalid login credentials", auth.CodeInvalidLoginCredentials},
	}

	duplicateCodes = map[string]bool{
		"user_already_exists": true,
		"email_exists":        true,
	}

	duplicateTexts = []string{
		"already exists",
		"already registered",
		"already been registered",
	}
)

// providerError converts any client failure into an auth error, keeping the
// provider's message and native code.
func providerError(err error) *auth.Error {
	var apiErr *gotrue.APIError
	if errors.As(err, &apiErr) {
		return &auth.Error{Message: apiErr.Message, Code: auth.Code(apiErr.Code), Err: err}
	}
	return &auth.Error{Message: err.Error(), Err: err}
}

// normalizeSignInError copies a native code verbatim and otherwise infers one
// from the message text. Unknown failures stay uncoded.
func normalizeSignInError(err error) error {
	authErr := providerError(err)
	if authErr.Code != "" {
		return authErr
	}

	text := strings.ToLower(authErr.Message)
	for _, candidate := range signInTextCodes {
		if strings.Contains(text, candidate.substring) {
			authErr.Code = candidate.code
			break
		}
	}
	return authErr
}

// normalizeSignUpError maps every form of "this email is taken" onto
// user_already_exists.
func normalizeSignUpError(err error) error {
	authErr := providerError(err)
	if isDuplicate(string(authErr.Code), authErr.Message) {
		return &auth.Error{Message: authErr.Message, Code: auth.CodeUserAlreadyExists, Err: err}
	}
	return authErr
}

func isDuplicate(code, message string) bool {
	if duplicateCodes[code] {
		return true
	}
	text := strings.ToLower(message)
	for _, substring := range duplicateTexts {
		if strings.Contains(text, substring) {
			return true
		}
	}
	return false
}

// isObfuscatedDuplicate reports a success shaped sign up reply for an email
// that is already registered: the identity list is present but empty. An
// absent list is a genuine new user.
func isObfuscatedDuplicate(u *gotrue.User) bool {
	return u != nil && u.Identities != nil && len(u.Identities) == 0
}

func duplicateUserError() error {
	return auth.NewError(duplicateUserMessage, auth.CodeUserAlreadyExists)
}
