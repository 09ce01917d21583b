// Package onboarding runs the two-step registration dialogue: date of birth,
// then region. The machine is transport-agnostic; handler.go binds it to Telegram.
package onboarding

import "github.com/m3rciful/lifeweeks/internal/lifespan"

// State is the position of a user in the registration dialogue.
type State string

const (
	StateIdle           State = "idle"
	StateAwaitingDOB    State = "awaiting_dob"
	StateAwaitingRegion State = "awaiting_region"
)

// Session is the per-user dialogue state. PendingDOB is set only while
// awaiting the region.
type Session struct {
	State      State  `json:"state"`
	PendingDOB string `json:"pending_dob,omitempty"`
}

func idleSession() Session { return Session{State: StateIdle} }

func awaitingDOB() Session { return Session{State: StateAwaitingDOB} }

func awaitingRegion(dob string) Session {
	return Session{State: StateAwaitingRegion, PendingDOB: dob}
}

// Valid reports whether PendingDOB is set exactly when awaiting a region and,
// when set, holds a real calendar date.
func (s Session) Valid() bool {
	switch s.State {
	case StateIdle, StateAwaitingDOB:
		return s.PendingDOB == ""
	case StateAwaitingRegion:
		_, ok := lifespan.ParseDate(s.PendingDOB)
		return ok
	default:
		return false
	}
}

// Reply is what the machine wants to tell the user.
type Reply struct {
	Text string
	// Keyboard offers quick answers as a reply keyboard.
	Keyboard []string
	// RemoveKeyboard hides a previously shown reply keyboard.
	RemoveKeyboard bool
}
