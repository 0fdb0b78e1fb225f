// Package authapp wires the auth stack of one client process: the provider
// client, the repository, the session observer, the state store, the service
// and the hook views read from.
package authapp

import (
	"context"
	"net/http"
	"time"

	"github.com/jrsteele09/go-auth-bridge/auth"
	"github.com/jrsteele09/go-auth-bridge/auth/hook"
	"github.com/jrsteele09/go-auth-bridge/auth/state"
	"github.com/jrsteele09/go-auth-bridge/gotrue"
	"github.com/jrsteele09/go-auth-bridge/provider"
	"github.com/pkg/errors"
)

type Option func(o *options)

type options struct {
	storage          gotrue.Storage
	storageKey       string
	timeout          time.Duration
	httpClient       *http.Client
	emailRedirect    string
	recoveryRedirect string
	onObserverError  func(event gotrue.Event, err error)
}

// WithStorage sets where the session survives between runs. Defaults to memory.
func WithStorage(s gotrue.Storage) Option {
	return func(o *options) {
		o.storage = s
	}
}

func WithStorageKey(key string) Option {
	return func(o *options) {
		o.storageKey = key
	}
}

// WithTimeout bounds each provider round trip.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) {
		o.httpClient = hc
	}
}

// WithRedirects sets the landing urls of the confirmation and recovery emails.
func WithRedirects(emailRedirect, recoveryRedirect string) Option {
	return func(o *options) {
		o.emailRedirect = emailRedirect
		o.recoveryRedirect = recoveryRedirect
	}
}

func WithObserverErrorHandler(fn func(event gotrue.Event, err error)) Option {
	return func(o *options) {
		o.onObserverError = fn
	}
}

// App is the assembled auth stack. Views use Hook; Close releases the store.
type App struct {
	Client     *gotrue.Client
	Repository *provider.Repository
	Store      *state.Store
	Service    *auth.Service
	Hook       *hook.Hook
}

// New builds the stack for the provider at providerURL and loads any persisted
// session, so the store has left the loading state when New returns.
func New(ctx context.Context, providerURL, apiKey string, opts ...Option) (*App, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	clientOpts := []gotrue.Option{}
	if o.storage != nil {
		clientOpts = append(clientOpts, gotrue.WithStorage(o.storage))
	}
	if o.storageKey != "" {
		clientOpts = append(clientOpts, gotrue.WithStorageKey(o.storageKey))
	}
	switch {
	case o.httpClient != nil:
		clientOpts = append(clientOpts, gotrue.WithHTTPClient(o.httpClient))
	case o.timeout > 0:
		clientOpts = append(clientOpts, gotrue.WithHTTPClient(&http.Client{Timeout: o.timeout}))
	}

	client, err := gotrue.New(providerURL, apiKey, clientOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "[authapp.New] provider client")
	}

	repo := provider.NewRepository(client,
		provider.WithEmailRedirect(o.emailRedirect),
		provider.WithRecoveryRedirect(o.recoveryRedirect),
	)
	service, err := auth.NewService(repo)
	if err != nil {
		return nil, errors.Wrap(err, "[authapp.New] service")
	}

	observerOpts := []provider.ObserverOption{}
	if o.onObserverError != nil {
		observerOpts = append(observerOpts, provider.WithErrorHandler(o.onObserverError))
	}
	store := state.New(provider.NewObserver(client, observerOpts...))

	if err := client.Initialize(ctx); err != nil {
		store.Dispose()
		return nil, errors.Wrap(err, "[authapp.New] initialize")
	}

	return &App{
		Client:     client,
		Repository: repo,
		Store:      store,
		Service:    service,
		Hook:       hook.New(store, service),
	}, nil
}

// Close detaches the store from the provider client. The persisted session is kept.
func (a *App) Close() {
	a.Store.Dispose()
}
