package auth_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jrsteele09/go-auth-bridge/auth"
	"github.com/stretchr/testify/require"
)

func TestState_Validate(t *testing.T) {
	session := testSession()
	user := session.User

	t.Run("constructors are valid", func(t *testing.T) {
		require.NoError(t, auth.Loading().Validate())
		require.NoError(t, auth.Unauthenticated().Validate())
		require.NoError(t, auth.Authenticated(user, session).Validate())
	})

	t.Run("authenticated without session", func(t *testing.T) {
		s := auth.State{User: &user, Status: auth.StatusAuthenticated}
		require.Error(t, s.Validate())
	})

	t.Run("unauthenticated with user", func(t *testing.T) {
		s := auth.State{User: &user, Status: auth.StatusUnauthenticated}
		require.Error(t, s.Validate())
	})

	t.Run("unknown status", func(t *testing.T) {
		require.Error(t, auth.State{Status: "pending"}.Validate())
	})
}

func TestState_CloneIsDeep(t *testing.T) {
	session := testSession()
	original := auth.Authenticated(session.User, session)

	clone := original.Clone()
	clone.User.Email = "changed@example.com"
	clone.Session.AccessToken = "changed"

	require.Equal(t, testUserEmail, original.User.Email)
	require.Equal(t, "access", original.Session.AccessToken)
	require.True(t, clone.IsAuthenticated())
}

func TestCodeOf(t *testing.T) {
	coded := auth.NewError("already", auth.CodeUserAlreadyExists)

	require.Equal(t, auth.CodeUserAlreadyExists, auth.CodeOf(coded))
	require.Equal(t, auth.CodeUserAlreadyExists, auth.CodeOf(fmt.Errorf("outer: %w", coded)))
	require.Empty(t, auth.CodeOf(errors.New(coded.Error())), "a plain error discards the code")
	require.Empty(t, auth.CodeOf(nil))
	require.Nil(t, auth.WrapError(nil, "prefix"))
}
