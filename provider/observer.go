package provider

import (
	"time"

	"github.com/jrsteele09/go-auth-bridge/auth/state"
	"github.com/jrsteele09/go-auth-bridge/gotrue"
	"github.com/rs/zerolog/log"
)

var _ state.Source = (*Observer)(nil)

type ObserverOption func(o *Observer)

// WithErrorHandler receives payloads that could not be mapped. The default logs them.
func WithErrorHandler(fn func(event gotrue.Event, err error)) ObserverOption {
	return func(o *Observer) {
		o.onError = fn
	}
}

func WithObserverClock(now func() time.Time) ObserverOption {
	return func(o *Observer) {
		o.now = now
	}
}

// Observer turns the client's session change events into auth states.
type Observer struct {
	client  Client
	now     func() time.Time
	onError func(event gotrue.Event, err error)
}

func NewObserver(client Client, opts ...ObserverOption) *Observer {
	o := &Observer{
		client: client,
		now:    time.Now,
		onError: func(event gotrue.Event, err error) {
			log.Error().Err(err).Str("event", string(event)).Msg("dropping unmappable auth state change")
		},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Subscribe attaches publish to the client's change channel. A payload that
// cannot be mapped is reported and not published, so the store keeps its
// last valid state.
func (o *Observer) Subscribe(publish state.Publish) func() {
	sub := o.client.OnAuthStateChange(func(event gotrue.Event, session *gotrue.Session) {
		next, err := mapState(session, o.now())
		if err != nil {
			o.onError(event, err)
			return
		}
		log.Debug().Str("event", string(event)).Str("status", string(next.Status)).Msg("publishing auth state")
		publish(next)
	})
	return sub.Unsubscribe
}
