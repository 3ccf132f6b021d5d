package engine

import (
	"errors"
	"testing"

	"github.com/loomchat/loom-backend/internal/coord"
)

func TestCompare_AntiSymmetric(t *testing.T) {
	hands := []Hand{Rock, Paper, Scissors}
	for _, a := range hands {
		for _, b := range hands {
			got, inverse := Compare(a, b), Compare(b, a)
			if got != -inverse {
				t.Fatalf("Compare(%s,%s)=%d but Compare(%s,%s)=%d", a, b, got, b, a, inverse)
			}
			if a == b && got != 0 {
				t.Fatalf("Compare(%s,%s) should draw, got %d", a, b, got)
			}
		}
	}
}

func TestRPS_RoundResolvesWhenBothMoved(t *testing.T) {
	g := NewRockPaperScissors("p1", "p2")

	if err := g.Apply("p1", HandMove{Hand: Rock}); err != nil {
		t.Fatal(err)
	}
	if g.LastResolved != nil {
		t.Fatalf("round resolved with only one hand in")
	}

	if err := g.Apply("p2", HandMove{Hand: Scissors}); err != nil {
		t.Fatal(err)
	}
	if g.LastResolved == nil {
		t.Fatalf("round did not resolve with both hands in")
	}
	if g.LastResolved.Winner != "p1" {
		t.Fatalf("rock beats scissors: want p1, got %q", g.LastResolved.Winner)
	}
	if g.Scores["p1"] != 1 || g.Scores["p2"] != 0 {
		t.Fatalf("scores wrong: %+v", g.Scores)
	}
	if len(g.Pending) != 0 {
		t.Fatalf("pending hands not cleared after resolution")
	}
	if g.Round != 2 {
		t.Fatalf("round counter should be 2, got %d", g.Round)
	}
}

func TestRPS_TiedRoundScoresNothing(t *testing.T) {
	g := NewRockPaperScissors("p1", "p2")
	if err := g.Apply("p1", HandMove{Hand: Paper}); err != nil {
		t.Fatal(err)
	}
	if err := g.Apply("p2", HandMove{Hand: Paper}); err != nil {
		t.Fatal(err)
	}
	if g.LastResolved == nil || g.LastResolved.Winner != "" {
		t.Fatalf("tied round should resolve with no winner: %+v", g.LastResolved)
	}
	if g.Scores["p1"] != 0 || g.Scores["p2"] != 0 {
		t.Fatalf("tie changed scores: %+v", g.Scores)
	}
}

func TestRPS_RejectsSecondHandSameRound(t *testing.T) {
	g := NewRockPaperScissors("p1", "p2")
	if err := g.Apply("p1", HandMove{Hand: Rock}); err != nil {
		t.Fatal(err)
	}
	if err := g.Apply("p1", HandMove{Hand: Paper}); !errors.Is(err, coord.ErrInvalidState) {
		t.Fatalf("want ErrInvalidState for double submission, got %v", err)
	}
}

func TestRPS_MatchEndsAtThreeWins(t *testing.T) {
	g := NewRockPaperScissors("p1", "p2")
	for i := 0; i < WinsNeeded; i++ {
		if err := g.Apply("p1", HandMove{Hand: Rock}); err != nil {
			t.Fatal(err)
		}
		if err := g.Apply("p2", HandMove{Hand: Scissors}); err != nil {
			t.Fatal(err)
		}
	}
	if g.Status() != StatusFinished {
		t.Fatalf("match should be finished at %d wins", WinsNeeded)
	}
	oc := g.Outcome()
	if !oc.Done || oc.Winner != "p1" {
		t.Fatalf("want p1 as winner, got %+v", oc)
	}

	if err := g.Apply("p2", HandMove{Hand: Rock}); !errors.Is(err, coord.ErrInvalidState) {
		t.Fatalf("finished match accepted a hand: %v", err)
	}
}
