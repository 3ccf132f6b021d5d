package engine

import "github.com/loomchat/loom-backend/internal/coord"

type Hand string

const (
	Rock     Hand = "rock"
	Paper    Hand = "paper"
	Scissors Hand = "scissors"
)

// HandMove submits one hidden hand for the current round.
type HandMove struct {
	Hand Hand
}

func (HandMove) isMove() {}

// WinsNeeded ends the match the instant either player reaches it.
const WinsNeeded = 3

// BestOf is advertised to clients; ties make longer matches possible.
const BestOf = 5

var beats = map[Hand]Hand{
	Rock:     Scissors,
	Scissors: Paper,
	Paper:    Rock,
}

// Compare resolves one round: 1 if a beats b, -1 if b beats a, 0 for a
// tie. Anti-symmetric by construction.
func Compare(a, b Hand) int {
	switch {
	case a == b:
		return 0
	case beats[a] == b:
		return 1
	default:
		return -1
	}
}

// RoundResult is the resolved state of one completed round.
type RoundResult struct {
	Round  int
	Moves  map[string]Hand
	Winner string // empty for a tied round
}

type RockPaperScissors struct {
	PlayerIDs [2]string
	Pending   map[string]Hand // this round's hidden moves
	Scores    map[string]int
	Round     int
	Phase     Status
	Winner    string

	// LastResolved is set when an Apply completes a round and cleared on
	// the next Apply, so the caller can broadcast the round outcome.
	LastResolved *RoundResult
}

func NewRockPaperScissors(p1, p2 string) *RockPaperScissors {
	return &RockPaperScissors{
		PlayerIDs: [2]string{p1, p2},
		Pending:   make(map[string]Hand),
		Scores:    map[string]int{p1: 0, p2: 0},
		Round:     1,
		Phase:     StatusPlaying,
	}
}

func (g *RockPaperScissors) Kind() string      { return "rps" }
func (g *RockPaperScissors) Players() []string { return []string{g.PlayerIDs[0], g.PlayerIDs[1]} }
func (g *RockPaperScissors) Status() Status    { return g.Phase }

// CurrentTurn is empty: both players move simultaneously.
func (g *RockPaperScissors) CurrentTurn() string { return "" }

func (g *RockPaperScissors) Apply(mover string, mv Move) error {
	hm, ok := mv.(HandMove)
	if !ok {
		return coord.ErrInvalidState
	}
	if err := checkParticipant(g.Players(), mover); err != nil {
		return err
	}
	if g.Phase != StatusPlaying {
		return coord.ErrInvalidState
	}
	if _, dup := g.Pending[mover]; dup {
		return coord.ErrInvalidState // one hand per round
	}
	switch hm.Hand {
	case Rock, Paper, Scissors:
	default:
		return coord.ErrInvalidState
	}

	g.LastResolved = nil
	g.Pending[mover] = hm.Hand
	if len(g.Pending) < 2 {
		return nil // round resolves only when both hands are in
	}

	p1, p2 := g.PlayerIDs[0], g.PlayerIDs[1]
	result := &RoundResult{
		Round: g.Round,
		Moves: map[string]Hand{p1: g.Pending[p1], p2: g.Pending[p2]},
	}
	switch Compare(g.Pending[p1], g.Pending[p2]) {
	case 1:
		g.Scores[p1]++
		result.Winner = p1
	case -1:
		g.Scores[p2]++
		result.Winner = p2
	}

	g.Pending = make(map[string]Hand)
	g.Round++
	g.LastResolved = result

	if g.Scores[p1] == WinsNeeded || g.Scores[p2] == WinsNeeded {
		g.Phase = StatusFinished
		g.Winner = result.Winner
	}
	return nil
}

func (g *RockPaperScissors) Outcome() Outcome {
	if g.Phase != StatusFinished {
		return Outcome{}
	}
	return Outcome{Done: true, Winner: g.Winner}
}
