package auth

import "fmt"

// Status is the coarse authentication status published to the UI.
type Status string

const (
	StatusLoading         Status = "loading"
	StatusAuthenticated   Status = "authenticated"
	StatusUnauthenticated Status = "unauthenticated"
)

// State is the reactive {user, session, status} triple.
//
// Invariants:
//   - Status == StatusAuthenticated  <=> User != nil && Session != nil
//   - Status == StatusUnauthenticated => User == nil && Session == nil
//   - Status == StatusLoading only before the first observer callback, with no user or session
type State struct {
	User    *User    `json:"user"`
	Session *Session `json:"session"`
	Status  Status   `json:"status"`
}

// Loading is the initial state of a freshly constructed store.
func Loading() State {
	return State{Status: StatusLoading}
}

// Unauthenticated is the state published when the provider reports no session.
func Unauthenticated() State {
	return State{Status: StatusUnauthenticated}
}

// Authenticated builds the state for a mapped provider session.
func Authenticated(user User, session Session) State {
	return State{
		User:    &user,
		Session: &session,
		Status:  StatusAuthenticated,
	}
}

// IsAuthenticated reports whether the state carries a user and a session.
func (s State) IsAuthenticated() bool {
	return s.Status == StatusAuthenticated
}

// Validate checks the status invariant.
func (s State) Validate() error {
	switch s.Status {
	case StatusAuthenticated:
		if s.User == nil || s.Session == nil {
			return fmt.Errorf("authenticated state requires user and session")
		}
	case StatusUnauthenticated, StatusLoading:
		if s.User != nil || s.Session != nil {
			return fmt.Errorf("%s state must not carry user or session", s.Status)
		}
	default:
		return fmt.Errorf("unknown status %q", s.Status)
	}
	return nil
}

// Clone returns a deep copy so callers never share the store's live values.
func (s State) Clone() State {
	out := State{Status: s.Status}
	if s.User != nil {
		u := *s.User
		out.User = &u
	}
	if s.Session != nil {
		sess := *s.Session
		out.Session = &sess
	}
	return out
}
