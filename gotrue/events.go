package gotrue

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Event names a change in the client's session.
type Event string

const (
	EventInitialSession   Event = "INITIAL_SESSION"
	EventSignedIn         Event = "SIGNED_IN"
	EventSignedOut        Event = "SIGNED_OUT"
	EventTokenRefreshed   Event = "TOKEN_REFRESHED"
	EventUserUpdated      Event = "USER_UPDATED"
	EventPasswordRecovery Event = "PASSWORD_RECOVERY"
)

// ChangeCallback receives session changes. session is nil for signed out
// states and is a copy the callback may keep.
type ChangeCallback func(event Event, session *Session)

// Subscription is returned by OnAuthStateChange.
type Subscription struct {
	id     uint64
	client *Client
	once   sync.Once
}

// Unsubscribe stops delivery to the callback. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.client.subsLock.Lock()
		defer s.client.subsLock.Unlock()
		delete(s.client.subs, s.id)
		for i, id := range s.client.subOrder {
			if id == s.id {
				s.client.subOrder = append(s.client.subOrder[:i:i], s.client.subOrder[i+1:]...)
				break
			}
		}
	})
}

// OnAuthStateChange registers cb for every later session change. If the client
// was already initialized, cb is first told the current session with
// INITIAL_SESSION.
func (c *Client) OnAuthStateChange(cb ChangeCallback) *Subscription {
	c.subsLock.Lock()
	c.nextSubID++
	sub := &Subscription{id: c.nextSubID, client: c}
	c.subs[sub.id] = cb
	c.subOrder = append(c.subOrder, sub.id)
	initialized := c.initialized
	c.subsLock.Unlock()

	if initialized {
		session, err := c.loadSession(context.Background())
		if err != nil {
			log.Warn().Err(err).Msg("load session for new auth subscriber")
		}
		safeCall(cb, EventInitialSession, session)
	}
	return sub
}

func (c *Client) emit(event Event, session *Session) {
	c.subsLock.RLock()
	callbacks := make([]ChangeCallback, 0, len(c.subOrder))
	for _, id := range c.subOrder {
		callbacks = append(callbacks, c.subs[id])
	}
	c.subsLock.RUnlock()

	log.Debug().Str("event", string(event)).Bool("session", session != nil).Msg("auth state change")
	for _, cb := range callbacks {
		safeCall(cb, event, session.clone())
	}
}

func safeCall(cb ChangeCallback, event Event, session *Session) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("event", string(event)).Msg("auth state change callback panicked")
		}
	}()
	cb(event, session)
}
