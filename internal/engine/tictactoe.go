package engine

import "github.com/loomchat/loom-backend/internal/coord"

// CellMove places the mover's symbol at a board index (0..8).
type CellMove struct {
	Cell int
}

func (CellMove) isMove() {}

// winTriples are the eight fixed lines on a 3x3 board.
var winTriples = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

type TicTacToe struct {
	Board   [9]string // "X", "O" or empty
	PlayerX string
	PlayerO string
	Turn    string // user id
	Phase   Status
}

// NewTicTacToe starts a game with x to move first.
func NewTicTacToe(x, o string) *TicTacToe {
	return &TicTacToe{PlayerX: x, PlayerO: o, Turn: x, Phase: StatusPlaying}
}

func (g *TicTacToe) Kind() string        { return "tictactoe" }
func (g *TicTacToe) Players() []string   { return []string{g.PlayerX, g.PlayerO} }
func (g *TicTacToe) CurrentTurn() string { return g.Turn }
func (g *TicTacToe) Status() Status      { return g.Phase }

// Symbol returns "X" or "O" for a participant.
func (g *TicTacToe) Symbol(user string) string {
	if user == g.PlayerX {
		return "X"
	}
	return "O"
}

func (g *TicTacToe) Apply(mover string, mv Move) error {
	cm, ok := mv.(CellMove)
	if !ok {
		return coord.ErrInvalidState
	}
	if err := checkParticipant(g.Players(), mover); err != nil {
		return err
	}
	if g.Phase != StatusPlaying || mover != g.Turn {
		return coord.ErrInvalidState
	}
	if cm.Cell < 0 || cm.Cell > 8 || g.Board[cm.Cell] != "" {
		return coord.ErrInvalidState
	}

	g.Board[cm.Cell] = g.Symbol(mover)
	if g.Outcome().Done {
		g.Phase = StatusFinished
		return nil
	}
	if mover == g.PlayerX {
		g.Turn = g.PlayerO
	} else {
		g.Turn = g.PlayerX
	}
	return nil
}

func (g *TicTacToe) Outcome() Outcome {
	for _, t := range winTriples {
		s := g.Board[t[0]]
		if s != "" && s == g.Board[t[1]] && s == g.Board[t[2]] {
			winner := g.PlayerX
			if s == "O" {
				winner = g.PlayerO
			}
			return Outcome{Done: true, Winner: winner}
		}
	}
	for _, c := range g.Board {
		if c == "" {
			return Outcome{}
		}
	}
	return Outcome{Done: true} // full board, no triple
}
