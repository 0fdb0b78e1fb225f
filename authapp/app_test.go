package authapp_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-bridge/auth"
	"github.com/jrsteele09/go-auth-bridge/authapp"
	"github.com/jrsteele09/go-auth-bridge/gotrue"
	"github.com/jrsteele09/go-auth-bridge/internal/devprovider"
	"github.com/stretchr/testify/require"
)

const (
	testAPIKey   = "anon-key"
	testEmail    = "user@example.com"
	testPassword = "Password1"
)

type testFixture struct {
	devProvider *devprovider.Provider
	url         string
	storage     *gotrue.FileStorage
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	dp := devprovider.New(devprovider.WithAPIKey(testAPIKey))
	server := httptest.NewServer(dp)
	t.Cleanup(server.Close)

	_, err := dp.CreateUser(testEmail, testPassword, true)
	require.NoError(t, err)

	storage, err := gotrue.NewFileStorage(t.TempDir())
	require.NoError(t, err)

	return &testFixture{devProvider: dp, url: server.URL, storage: storage}
}

func (f *testFixture) newApp(t *testing.T) *authapp.App {
	t.Helper()
	app, err := authapp.New(context.Background(), f.url, testAPIKey,
		authapp.WithStorage(f.storage),
		authapp.WithTimeout(5*time.Second),
	)
	require.NoError(t, err)
	t.Cleanup(app.Close)
	return app
}

func TestNew_Validation(t *testing.T) {
	_, err := authapp.New(context.Background(), "not a url", testAPIKey)
	require.Error(t, err)

	_, err = authapp.New(context.Background(), "http://localhost:9999", "")
	require.Error(t, err)
}

func TestApp_StartsUnauthenticated(t *testing.T) {
	f := setupTestFixture(t)
	app := f.newApp(t)

	require.Equal(t, auth.StatusUnauthenticated, app.Hook.State().Status)
}

func TestApp_SignInUpdatesHookState(t *testing.T) {
	f := setupTestFixture(t)
	app := f.newApp(t)
	ctx := context.Background()

	var statuses []auth.Status
	unsubscribe := app.Hook.Subscribe(func(s auth.State) { statuses = append(statuses, s.Status) })
	defer unsubscribe()

	_, err := app.Hook.SignIn(ctx, testEmail, testPassword)
	require.NoError(t, err)
	require.Equal(t, testEmail, app.Hook.State().User.Email)

	require.NoError(t, app.Hook.SignOut(ctx))
	require.Equal(t, []auth.Status{
		auth.StatusUnauthenticated,
		auth.StatusAuthenticated,
		auth.StatusUnauthenticated,
	}, statuses)
}

func TestApp_SessionSurvivesRestart(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	first := f.newApp(t)
	_, err := first.Hook.SignIn(ctx, testEmail, testPassword)
	require.NoError(t, err)
	first.Close()

	second := f.newApp(t)
	snapshot := second.Hook.State()
	require.Equal(t, auth.StatusAuthenticated, snapshot.Status)
	require.Equal(t, testEmail, snapshot.User.Email)

	user, err := second.Hook.GetCurrentUser(ctx)
	require.NoError(t, err)
	require.Equal(t, testEmail, user.Email)
}

func TestApp_CloseStopsUpdates(t *testing.T) {
	f := setupTestFixture(t)
	app := f.newApp(t)
	app.Close()

	_, err := app.Hook.SignIn(context.Background(), testEmail, testPassword)
	require.NoError(t, err)
	require.Equal(t, auth.StatusUnauthenticated, app.Hook.State().Status)
}
