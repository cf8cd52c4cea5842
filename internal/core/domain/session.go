// Package domain defines the core domain models for tokpass.
package domain

import "fmt"

// State is the login state derived from a Session.
type State int

const (
	// StateLoggedOut means neither credential is held.
	StateLoggedOut State = iota
	// StateLoggedIn means both credentials are held.
	StateLoggedIn
	// StatePartial means exactly one credential is held. It is only reachable
	// while loading from secure storage, never through Login or Logout.
	StatePartial
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateLoggedOut:
		return "logged_out"
	case StateLoggedIn:
		return "logged_in"
	case StatePartial:
		return "partial"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Session is the credential pair owned by the session store.
//
// It is a value: replacing a Session replaces both credentials in a single
// assignment, so readers never observe one field updated without the other.
type Session struct {
	Access  string `json:"access,omitempty" yaml:"access,omitempty"`
	Refresh string `json:"refresh,omitempty" yaml:"refresh,omitempty"`
}

// NewSession creates a fully populated session.
// Both credentials are required.
func NewSession(access, refresh string) (Session, error) {
	if access == "" {
		return Session{}, ErrInvalidArgument.WithDetails("access credential is required")
	}
	if refresh == "" {
		return Session{}, ErrInvalidArgument.WithDetails("refresh credential is required")
	}
	return Session{Access: access, Refresh: refresh}, nil
}

// State reports the login state of the session.
func (s Session) State() State {
	switch {
	case s.Access == "" && s.Refresh == "":
		return StateLoggedOut
	case s.Access != "" && s.Refresh != "":
		return StateLoggedIn
	default:
		return StatePartial
	}
}

// Authenticated reports whether the access credential is present.
// Routing looks at the access credential only.
func (s Session) Authenticated() bool {
	return s.Access != ""
}

// IsZero reports whether no credential is held.
func (s Session) IsZero() bool {
	return s.Access == "" && s.Refresh == ""
}

// Equal reports whether both credentials match.
func (s Session) Equal(other Session) bool {
	return s.Access == other.Access && s.Refresh == other.Refresh
}

// String returns a masked representation safe for logs and terminals.
func (s Session) String() string {
	return fmt.Sprintf("Session{state=%s access=%s refresh=%s}",
		s.State(), MaskCredential(s.Access), MaskCredential(s.Refresh))
}

// MaskCredential hides all but a short hint of an opaque credential.
// Format: first 4 chars + "..." + last 4 chars; shorter values become "***".
func MaskCredential(v string) string {
	if v == "" {
		return "<unset>"
	}
	if len(v) <= 12 {
		return "***"
	}
	return v[:4] + "..." + v[len(v)-4:]
}
