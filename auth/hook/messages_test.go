package hook_test

import (
	"errors"
	"testing"

	"github.com/jrsteele09/go-auth-bridge/auth"
	"github.com/jrsteele09/go-auth-bridge/auth/hook"
	"github.com/stretchr/testify/require"
)

func TestMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"native credentials code", auth.NewError("Invalid login credentials", "invalid_credentials"), "Invalid email or password."},
		{"inferred credentials code", auth.NewError("Invalid login credentials", auth.CodeInvalidLoginCredentials), "Invalid email or password."},
		{"unconfirmed", auth.WrapError(auth.NewError("Email not confirmed", auth.CodeEmailNotConfirmed), "Sign in failed"), "Please confirm your email address before signing in."},
		{"duplicate", auth.NewError("User already registered", auth.CodeUserAlreadyExists), "An account with this email already exists. Please sign in."},
		{"unknown code", auth.NewError("database on fire", "unexpected_failure"), hook.DefaultMessage},
		{"uncoded", errors.New("dial tcp: connection refused"), hook.DefaultMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, hook.Message(tt.err))
		})
	}
}
