// Package coord holds the small set of types shared by every coordinator
// component: the error taxonomy and the outgoing-event triple.
package coord

import "errors"

var (
	// ErrNotFound means the session, room or game id does not exist,
	// typically because it already expired or was never created.
	ErrNotFound = errors.New("session not found")

	// ErrUnauthorized means the actor is not a participant or not the
	// addressee of the action.
	ErrUnauthorized = errors.New("not a participant")

	// ErrInvalidState means the action is illegal in the session's current
	// state, e.g. a move on a finished game or an out-of-turn move.
	ErrInvalidState = errors.New("invalid state for action")

	// ErrCapacityExceeded means a room or speaker set is full.
	ErrCapacityExceeded = errors.New("capacity exceeded")

	// ErrRateLimited means the event was rejected by the rate-limit gate.
	ErrRateLimited = errors.New("rate limited")
)

// Outgoing is one event destined for one user. Component handlers return
// zero or more of these; the dispatcher resolves each target against the
// connection registry and drops triples whose target is unreachable.
type Outgoing struct {
	UserID  string
	Event   string
	Payload any
}
