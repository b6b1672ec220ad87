package session

import "nyscmate/internal/app/user"

// Status is the variant of a session State.
type Status int

const (
	StatusLoading Status = iota
	StatusUnauthenticated
	StatusAuthenticated
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusUnauthenticated:
		return "unauthenticated"
	case StatusAuthenticated:
		return "authenticated"
	}
	return "unknown"
}

// State is the session as views see it. Profile is non-nil exactly when Status is StatusAuthenticated.
type State struct {
	Status  Status
	Profile *user.Profile
}

// Authenticated reports whether the state carries a signed-in profile.
func (s State) Authenticated() bool {
	return s.Status == StatusAuthenticated && s.Profile != nil
}

type eventKind int

const (
	evStart eventKind = iota
	evSignedIn
	evSignedOut
	evProfileChanged
	evAttemptFailed
)

type event struct {
	kind    eventKind
	profile *user.Profile
}

// reduce is the transition function. It is total: every event from every state yields a
// state, and a signed-in state without a profile can never be produced.
func reduce(s State, ev event) State {
	switch ev.kind {
	case evStart:
		return State{Status: StatusLoading}
	case evSignedIn:
		if ev.profile == nil {
			return State{Status: StatusUnauthenticated}
		}
		return State{Status: StatusAuthenticated, Profile: ev.profile.Clone()}
	case evSignedOut:
		return State{Status: StatusUnauthenticated}
	case evProfileChanged:
		if s.Status != StatusAuthenticated || ev.profile == nil {
			return s
		}
		return State{Status: StatusAuthenticated, Profile: ev.profile.Clone()}
	case evAttemptFailed:
		return s
	}
	return s
}
