// Package engine holds the pure state-transition logic for the three
// turn-based games. Each engine implements the same apply/outcome
// contract; the dispatcher never branches on game type outside of
// constructing the right engine for a session.
package engine

import "github.com/loomchat/loom-backend/internal/coord"

type Status string

const (
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

// Outcome is the result of inspecting a board: still in progress, won by
// a participant, or drawn.
type Outcome struct {
	Done   bool
	Winner string // empty with Done set means a draw
}

// Move is the tagged union of per-game move payloads. Engines reject
// moves of the wrong concrete type with ErrInvalidState.
type Move interface{ isMove() }

// Engine is the common contract every game funnels through.
type Engine interface {
	Kind() string
	Players() []string
	CurrentTurn() string
	Status() Status

	// Apply validates and applies a move in place. On error the state is
	// untouched. Participants are checked first (ErrUnauthorized), then
	// game state (ErrInvalidState).
	Apply(mover string, mv Move) error

	// Outcome reports the terminal result, if any.
	Outcome() Outcome
}

func checkParticipant(players []string, mover string) error {
	for _, p := range players {
		if p == mover {
			return nil
		}
	}
	return coord.ErrUnauthorized
}
