// Package state provides the login-session lifecycle phases.
package state

// Phase represents the session lifecycle phase.
type Phase int

const (
	PhaseLoggedOut      Phase = iota // No token, all derived collections empty
	PhaseAuthenticating              // A login flow is in progress
	PhaseLoggedIn                    // Token present, engine operations valid
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseLoggedOut:
		return "logged_out"
	case PhaseAuthenticating:
		return "authenticating"
	case PhaseLoggedIn:
		return "logged_in"
	default:
		return "unknown"
	}
}
