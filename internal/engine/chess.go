package engine

import (
	"encoding/json"

	"github.com/loomchat/loom-backend/internal/coord"
)

type Color string

const (
	White Color = "white"
	Black Color = "black"
)

// Piece is one occupied square; empty squares are nil.
type Piece struct {
	Type  string `json:"type"`
	Color Color  `json:"color"`
}

type ChessBoard [8][8]*Piece

// BoardMove carries the client-computed resulting board plus a history
// entry. The engine validates the board's shape but NOT move legality:
// it trusts the mover's computation. This is a known integrity gap
// carried over deliberately; a legality checker would slot in here
// behind the same Apply contract without reshaping the session model.
type BoardMove struct {
	Board  json.RawMessage
	Record json.RawMessage
}

func (BoardMove) isMove() {}

// Resignation ends the game immediately with the opponent as winner.
type Resignation struct{}

func (Resignation) isMove() {}

// DeclaredEnd is the explicit game-end message (checkmate or stalemate
// detected client-side). Empty Winner means a draw.
type DeclaredEnd struct {
	Winner string
}

func (DeclaredEnd) isMove() {}

type Chess struct {
	WhiteID string
	BlackID string
	Board   ChessBoard
	Turn    string // user id
	History []json.RawMessage
	Phase   Status
	Winner  string
}

func NewChess(white, black string) *Chess {
	return &Chess{
		WhiteID: white,
		BlackID: black,
		Board:   initialChessBoard(),
		Turn:    white,
		Phase:   StatusPlaying,
	}
}

func (g *Chess) Kind() string        { return "chess" }
func (g *Chess) Players() []string   { return []string{g.WhiteID, g.BlackID} }
func (g *Chess) CurrentTurn() string { return g.Turn }
func (g *Chess) Status() Status      { return g.Phase }

func (g *Chess) ColorOf(user string) Color {
	if user == g.WhiteID {
		return White
	}
	return Black
}

func (g *Chess) Apply(mover string, mv Move) error {
	if err := checkParticipant(g.Players(), mover); err != nil {
		return err
	}

	switch m := mv.(type) {
	case BoardMove:
		if g.Phase != StatusPlaying || mover != g.Turn {
			return coord.ErrInvalidState
		}
		var board ChessBoard
		if err := json.Unmarshal(m.Board, &board); err != nil {
			return coord.ErrInvalidState
		}
		g.Board = board
		g.History = append(g.History, m.Record)
		// Turn alternates unconditionally after any accepted move.
		if mover == g.WhiteID {
			g.Turn = g.BlackID
		} else {
			g.Turn = g.WhiteID
		}
		return nil

	case Resignation:
		if g.Phase != StatusPlaying {
			return coord.ErrInvalidState
		}
		g.Phase = StatusFinished
		if mover == g.WhiteID {
			g.Winner = g.BlackID
		} else {
			g.Winner = g.WhiteID
		}
		return nil

	case DeclaredEnd:
		if g.Phase != StatusPlaying {
			return coord.ErrInvalidState
		}
		if m.Winner != "" && m.Winner != g.WhiteID && m.Winner != g.BlackID {
			return coord.ErrInvalidState
		}
		g.Phase = StatusFinished
		g.Winner = m.Winner
		return nil

	default:
		return coord.ErrInvalidState
	}
}

func (g *Chess) Outcome() Outcome {
	if g.Phase != StatusFinished {
		return Outcome{}
	}
	return Outcome{Done: true, Winner: g.Winner}
}

// MarshalBoard renders the current board for a broadcast payload.
func (g *Chess) MarshalBoard() json.RawMessage {
	b, _ := json.Marshal(g.Board)
	return b
}

func initialChessBoard() ChessBoard {
	var b ChessBoard
	back := []string{"rook", "knight", "bishop", "queen", "king", "bishop", "knight", "rook"}
	for col := 0; col < 8; col++ {
		b[0][col] = &Piece{Type: back[col], Color: Black}
		b[1][col] = &Piece{Type: "pawn", Color: Black}
		b[6][col] = &Piece{Type: "pawn", Color: White}
		b[7][col] = &Piece{Type: back[col], Color: White}
	}
	return b
}
