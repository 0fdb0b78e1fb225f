package server

import (
	"strings"

	"github.com/jrsteele09/go-auth-bridge/auth/hook"
)

const defaultErrorMessage = hook.DefaultMessage

const (
	checkEmailNotice   = "If an account exists for that email, a password reset link is on its way."
	confirmEmailNotice = "Check your email for a link to confirm your account."
	passwordSetNotice  = "Your password has been updated."
)

var (
	messageFor     = hook.Message
	messageForCode = hook.MessageForCode
)

// validationMessage turns a form validation error into a sentence.
func validationMessage(err error) string {
	msg := err.Error()
	if msg == "" {
		return defaultErrorMessage
	}
	return strings.ToUpper(msg[:1]) + msg[1:] + "."
}
