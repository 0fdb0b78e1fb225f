package auth

import "errors"

// Code is a stable, machine readable classification attached to an auth Error.
type Code string

const (
	CodeUserAlreadyExists       Code = "user_already_exists"
	CodeEmailNotConfirmed       Code = "email_not_confirmed"
	CodeInvalidLoginCredentials Code = "invalid_login_credentials"
)

var (
	MissingEmailErr   = errors.New("provider user has no email")
	MissingSessionErr = errors.New("provider returned no session")
	MissingUserErr    = errors.New("provider returned no user")
)

// Error is an authentication failure with an optional stable Code.
// Codes are assigned only by the layer talking to the identity provider; every
// layer above either keeps the code (WrapError) or explicitly discards it.
type Error struct {
	Message string
	Code    Code
	Err     error
}

// NewError creates a coded error. An empty code leaves the error uncoded.
func NewError(message string, code Code) *Error {
	return &Error{Message: message, Code: code}
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) Code {
	var authErr *Error
	if errors.As(err, &authErr) {
		return authErr.Code
	}
	return ""
}

// WrapError prefixes err's message and carries its code onto the new error.
func WrapError(err error, prefix string) error {
	if err == nil {
		return nil
	}
	return &Error{
		Message: prefix + ": " + err.Error(),
		Code:    CodeOf(err),
		Err:     err,
	}
}
