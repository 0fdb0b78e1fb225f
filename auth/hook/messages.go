package hook

import "github.com/jrsteele09/go-auth-bridge/auth"

// DefaultMessage is shown for every failure without a known code.
const DefaultMessage = "Something went wrong. Please try again."

// codeMessages is the only source of failure copy shown to users. Anything
// not listed falls back to DefaultMessage so provider wording never leaks.
var codeMessages = map[auth.Code]string{
	auth.CodeInvalidLoginCredentials: "Invalid email or password.",
	"invalid_credentials":            "Invalid email or password.",
	auth.CodeEmailNotConfirmed:       "Please confirm your email address before signing in.",
	auth.CodeUserAlreadyExists:       "An account with this email already exists. Please sign in.",
	"weak_password":                  "Password is too weak. Please choose a stronger password.",
	"same_password":                  "Your new password must be different from the current one.",
	"otp_expired":                    "This link is invalid or has expired. Please request a new one.",
	"over_request_rate_limit":        "Too many requests. Please wait and try again.",
	"over_email_send_rate_limit":     "Too many emails requested. Please wait and try again.",
}

// Message picks the user facing copy for err from its code alone.
func Message(err error) string {
	return MessageForCode(auth.CodeOf(err))
}

func MessageForCode(code auth.Code) string {
	if msg, ok := codeMessages[code]; ok {
		return msg
	}
	return DefaultMessage
}
