package dispatch

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/loomchat/loom-backend/internal/coord"
	"github.com/loomchat/loom-backend/internal/engine"
	"github.com/loomchat/loom-backend/internal/events"
	"github.com/loomchat/loom-backend/internal/session"
)

var gameKinds = []session.Kind{session.KindTicTacToe, session.KindRPS, session.KindChess}

// handleInvite forwards a game invitation to the invited user. The
// session is not created until the invitation is accepted.
func (d *Dispatcher) handleInvite(event string) handlerFunc {
	return func(_ context.Context, user string, payload json.RawMessage) ([]coord.Outgoing, error) {
		var p events.InvitePayload
		if err := json.Unmarshal(payload, &p); err != nil || p.InvitedUserID == "" {
			return nil, coord.ErrInvalidState
		}
		return []coord.Outgoing{{UserID: p.InvitedUserID, Event: event, Payload: json.RawMessage(payload)}}, nil
	}
}

func (d *Dispatcher) handleInviteDecline(event string) handlerFunc {
	return func(_ context.Context, user string, payload json.RawMessage) ([]coord.Outgoing, error) {
		var p events.InvitePayload
		if err := json.Unmarshal(payload, &p); err != nil || p.HostID == "" {
			return nil, coord.ErrInvalidState
		}
		return []coord.Outgoing{{UserID: p.HostID, Event: event, Payload: json.RawMessage(payload)}}, nil
	}
}

// handleInviteAccept creates the game session. The inviting host moves
// first: X in tic-tac-toe, white in chess.
func (d *Dispatcher) handleInviteAccept(kind session.Kind) handlerFunc {
	return func(_ context.Context, user string, payload json.RawMessage) ([]coord.Outgoing, error) {
		var p events.InvitePayload
		if err := json.Unmarshal(payload, &p); err != nil || p.HostID == "" {
			return nil, coord.ErrInvalidState
		}
		if p.HostID == user {
			return nil, coord.ErrInvalidState // cannot accept your own invite
		}
		id := p.GameID
		if id == "" {
			id = uuid.NewString()
		}

		var eng engine.Engine
		switch kind {
		case session.KindTicTacToe:
			eng = engine.NewTicTacToe(p.HostID, user)
		case session.KindRPS:
			eng = engine.NewRockPaperScissors(p.HostID, user)
		case session.KindChess:
			eng = engine.NewChess(p.HostID, user)
		}

		// Build the start payloads before Create publishes the engine; a
		// concurrent first move must not race these reads.
		out := startEvents(id, kind, eng)

		sess := &session.Session{
			ID:           id,
			Kind:         kind,
			Participants: []string{p.HostID, user},
			State:        eng,
		}
		if err := d.store.Create(sess); err != nil {
			return nil, err
		}
		d.armIdle(id)

		d.logger.Info("game started",
			zap.String("id", id), zap.String("kind", string(kind)),
			zap.String("host", p.HostID), zap.String("guest", user))

		return out, nil
	}
}

func startEvents(id string, kind session.Kind, eng engine.Engine) []coord.Outgoing {
	players := eng.Players()
	var payload any
	var event string

	switch kind {
	case session.KindTicTacToe:
		ttt := eng.(*engine.TicTacToe)
		event = events.GameStart
		payload = events.GameStartPayload{
			GameID:      id,
			Board:       make([]string, 9),
			Players:     players,
			Symbols:     map[string]string{ttt.PlayerX: "X", ttt.PlayerO: "O"},
			CurrentTurn: ttt.CurrentTurn(),
		}
	case session.KindRPS:
		event = events.RPSStart
		payload = events.RPSStartPayload{GameID: id, Players: players, BestOf: engine.BestOf}
	case session.KindChess:
		ch := eng.(*engine.Chess)
		event = events.ChessStart
		payload = events.ChessStartPayload{
			GameID: id, White: ch.WhiteID, Black: ch.BlackID, Board: ch.MarshalBoard(),
		}
	}

	out := make([]coord.Outgoing, 0, len(players))
	for _, p := range players {
		out = append(out, coord.Outgoing{UserID: p, Event: event, Payload: payload})
	}
	return out
}

func (d *Dispatcher) handleTicTacToeMove(_ context.Context, user string, payload json.RawMessage) ([]coord.Outgoing, error) {
	var p events.MovePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, coord.ErrInvalidState
	}

	var out []coord.Outgoing
	finished := false
	err := d.store.Update(p.GameID, func(s *session.Session) error {
		if s.Kind != session.KindTicTacToe {
			return coord.ErrNotFound
		}
		g := s.State.(*engine.TicTacToe)
		if err := g.Apply(user, engine.CellMove{Cell: p.Position}); err != nil {
			return err
		}

		// Copy the board; the payload is marshalled after the session
		// lock is released and must not alias live engine state.
		state := events.GameStatePayload{
			GameID:      p.GameID,
			Board:       append([]string(nil), g.Board[:]...),
			CurrentTurn: g.CurrentTurn(),
			LastMove:    p.Position,
			MovedBy:     user,
		}
		for _, part := range s.Participants {
			out = append(out, coord.Outgoing{UserID: part, Event: events.GameState, Payload: state})
		}

		if oc := g.Outcome(); oc.Done {
			finished = true
			over := events.GameOverPayload{GameID: p.GameID, WinnerID: oc.Winner, Draw: oc.Winner == ""}
			for _, part := range s.Participants {
				out = append(out, coord.Outgoing{UserID: part, Event: events.GameOver, Payload: over})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if finished {
		d.armGrace(p.GameID, session.FinishedGrace)
	} else {
		d.armIdle(p.GameID)
	}
	return out, nil
}

func (d *Dispatcher) handleRPSMove(_ context.Context, user string, payload json.RawMessage) ([]coord.Outgoing, error) {
	var p events.RPSMovePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, coord.ErrInvalidState
	}

	var out []coord.Outgoing
	finished := false
	err := d.store.Update(p.GameID, func(s *session.Session) error {
		if s.Kind != session.KindRPS {
			return coord.ErrNotFound
		}
		g := s.State.(*engine.RockPaperScissors)
		if err := g.Apply(user, engine.HandMove{Hand: engine.Hand(p.Move)}); err != nil {
			return err
		}

		if g.LastResolved == nil {
			// Round still open: acknowledge without revealing the hand.
			wait := events.SessionPayload{SessionID: p.GameID}
			for _, part := range s.Participants {
				out = append(out, coord.Outgoing{UserID: part, Event: events.RPSRoundWait, Payload: wait})
			}
			return nil
		}

		moves := make(map[string]string, 2)
		for id, h := range g.LastResolved.Moves {
			moves[id] = string(h)
		}
		// Scores are copied; the live map changes on the next round while
		// this payload may still be waiting to marshal.
		scores := make(map[string]int, len(g.Scores))
		for id, n := range g.Scores {
			scores[id] = n
		}
		round := events.RPSRoundPayload{
			GameID: p.GameID,
			Round:  g.LastResolved.Round,
			Moves:  moves,
			Winner: g.LastResolved.Winner,
			Scores: scores,
		}
		for _, part := range s.Participants {
			out = append(out, coord.Outgoing{UserID: part, Event: events.RPSRoundOver, Payload: round})
		}

		if oc := g.Outcome(); oc.Done {
			finished = true
			over := events.GameOverPayload{GameID: p.GameID, WinnerID: oc.Winner, Draw: oc.Winner == ""}
			for _, part := range s.Participants {
				out = append(out, coord.Outgoing{UserID: part, Event: events.RPSOver, Payload: over})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if finished {
		d.armGrace(p.GameID, session.FinishedGrace)
	} else {
		d.armIdle(p.GameID)
	}
	return out, nil
}

func (d *Dispatcher) handleChessMove(_ context.Context, user string, payload json.RawMessage) ([]coord.Outgoing, error) {
	var p events.ChessMovePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, coord.ErrInvalidState
	}

	var out []coord.Outgoing
	err := d.store.Update(p.GameID, func(s *session.Session) error {
		if s.Kind != session.KindChess {
			return coord.ErrNotFound
		}
		g := s.State.(*engine.Chess)
		if err := g.Apply(user, engine.BoardMove{Board: p.Board, Record: p.Move}); err != nil {
			return err
		}
		state := events.ChessStatePayload{
			GameID:      p.GameID,
			Board:       g.MarshalBoard(),
			Move:        p.Move,
			CurrentTurn: g.CurrentTurn(),
		}
		for _, part := range s.Participants {
			out = append(out, coord.Outgoing{UserID: part, Event: events.ChessState, Payload: state})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	d.armIdle(p.GameID)
	return out, nil
}

func (d *Dispatcher) handleChessResign(_ context.Context, user string, payload json.RawMessage) ([]coord.Outgoing, error) {
	var p events.SessionPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, coord.ErrInvalidState
	}
	return d.endChess(p.SessionID, user, engine.Resignation{})
}

func (d *Dispatcher) handleChessEnd(_ context.Context, user string, payload json.RawMessage) ([]coord.Outgoing, error) {
	var p events.ChessEndPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, coord.ErrInvalidState
	}
	return d.endChess(p.GameID, user, engine.DeclaredEnd{Winner: p.WinnerID})
}

func (d *Dispatcher) endChess(gameID, user string, mv engine.Move) ([]coord.Outgoing, error) {
	var out []coord.Outgoing
	err := d.store.Update(gameID, func(s *session.Session) error {
		if s.Kind != session.KindChess {
			return coord.ErrNotFound
		}
		g := s.State.(*engine.Chess)
		if err := g.Apply(user, mv); err != nil {
			return err
		}
		oc := g.Outcome()
		over := events.GameOverPayload{GameID: gameID, WinnerID: oc.Winner, Draw: oc.Winner == ""}
		for _, part := range s.Participants {
			out = append(out, coord.Outgoing{UserID: part, Event: events.ChessOver, Payload: over})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	d.armGrace(gameID, session.FinishedGrace)
	return out, nil
}

// sweepGames notifies opponents of the departed user and arms the
// reconnect grace period on each of their active games. Finished games
// keep their shorter post-completion grace.
func (d *Dispatcher) sweepGames(user string) []coord.Outgoing {
	var out []coord.Outgoing
	for _, id := range d.store.ForParticipant(user, gameKinds...) {
		var event string
		var targets []string
		err := d.store.View(id, func(s *session.Session) error {
			eng, ok := s.State.(engine.Engine)
			if !ok || eng.Status() == engine.StatusFinished {
				return nil
			}
			event = events.GameOpponentDisconnected
			switch s.Kind {
			case session.KindRPS:
				event = events.RPSDisconnect
			case session.KindChess:
				event = events.ChessDisconnect
			}
			targets = s.Others(user)
			return nil
		})
		if err != nil || event == "" {
			continue
		}
		payload := events.SessionPayload{SessionID: id}
		for _, p := range targets {
			out = append(out, coord.Outgoing{UserID: p, Event: event, Payload: payload})
		}
		d.armGrace(id, session.DisconnectGrace)
	}
	return out
}

// resumeGames lifts the disconnect grace on the user's in-progress games
// and re-arms the long idle timer. Finished games are skipped so they
// keep their short post-completion grace.
func (d *Dispatcher) resumeGames(user string) {
	for _, id := range d.store.ForParticipant(user, gameKinds...) {
		active := false
		_ = d.store.View(id, func(s *session.Session) error {
			if eng, ok := s.State.(engine.Engine); ok && eng.Status() != engine.StatusFinished {
				active = true
			}
			return nil
		})
		if !active {
			continue
		}
		d.store.CancelExpiry(id)
		d.armIdle(id)
	}
}

func (d *Dispatcher) armIdle(id string) {
	_ = d.store.ScheduleExpiry(id, session.GameIdleTimeout, d.notifyExpired)
}

func (d *Dispatcher) armGrace(id string, grace time.Duration) {
	_ = d.store.ScheduleExpiry(id, grace, d.notifyExpired)
}

// notifyExpired is the cleanup notification every expiring session emits
// to its participants.
func (d *Dispatcher) notifyExpired(s *session.Session) {
	payload := events.SessionExpiredPayload{SessionID: s.ID, Kind: string(s.Kind)}
	for _, p := range s.Participants {
		d.emit(coord.Outgoing{UserID: p, Event: events.SessionExpired, Payload: payload})
	}
}
