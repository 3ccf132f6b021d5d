// Package dispatch receives every inbound client event, gates it through
// the rate limiter, routes it to the owning component, and fans the
// resulting events out to the affected connections. It also runs the
// disconnect sweep: an ordered list of per-component cleanups, each
// isolated so one component's failure cannot leave stale state in the
// others.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/loomchat/loom-backend/internal/coord"
	"github.com/loomchat/loom-backend/internal/events"
	"github.com/loomchat/loom-backend/internal/match"
	"github.com/loomchat/loom-backend/internal/ratelimit"
	"github.com/loomchat/loom-backend/internal/registry"
	"github.com/loomchat/loom-backend/internal/room"
	"github.com/loomchat/loom-backend/internal/session"
)

type handlerFunc func(ctx context.Context, user string, payload json.RawMessage) ([]coord.Outgoing, error)

type cleanup struct {
	name string
	fn   func(user string) []coord.Outgoing
}

type Dispatcher struct {
	registry *registry.Registry
	limiter  *ratelimit.Limiter
	store    *session.Store
	rooms    *room.Manager
	queue    *match.Queue
	logger   *zap.Logger

	routes   map[string]handlerFunc
	cleanups []cleanup
}

func New(reg *registry.Registry, limiter *ratelimit.Limiter, store *session.Store,
	rooms *room.Manager, queue *match.Queue, logger *zap.Logger) *Dispatcher {

	d := &Dispatcher{
		registry: reg,
		limiter:  limiter,
		store:    store,
		rooms:    rooms,
		queue:    queue,
		logger:   logger.Named("dispatch"),
	}
	d.routes = d.buildRoutes()

	// Sweep order on disconnect: matchmaking first (cheapest), then
	// rooms, then games. Each entry is failure-isolated in Disconnect.
	d.cleanups = []cleanup{
		{name: "match", fn: d.queue.Disconnect},
		{name: "rooms", fn: d.rooms.Disconnect},
		{name: "games", fn: d.sweepGames},
	}
	return d
}

func (d *Dispatcher) buildRoutes() map[string]handlerFunc {
	return map[string]handlerFunc{
		events.Typing:     d.handleIndicator(events.Typing),
		events.StopTyping: d.handleIndicator(events.StopTyping),
		events.Cursor:     d.handleCursor,

		events.RoomJoin:      d.handleRoomJoin,
		events.RoomLeave:     d.handleRoomLeave,
		events.RoomHandRaise: d.handleHand(true),
		events.RoomHandLower: d.handleHand(false),
		events.RoomPromote:   d.handleRole(true),
		events.RoomDemote:    d.handleRole(false),

		events.GameInvite:        d.handleInvite(events.GameInvite),
		events.GameInviteAccept:  d.handleInviteAccept(session.KindTicTacToe),
		events.GameInviteDecline: d.handleInviteDecline(events.GameInviteDecline),
		events.GameMove:          d.handleTicTacToeMove,

		events.RPSInvite:        d.handleInvite(events.RPSInvite),
		events.RPSInviteAccept:  d.handleInviteAccept(session.KindRPS),
		events.RPSInviteDecline: d.handleInviteDecline(events.RPSInviteDecline),
		events.RPSMove:          d.handleRPSMove,

		events.ChessInvite:        d.handleInvite(events.ChessInvite),
		events.ChessInviteAccept:  d.handleInviteAccept(session.KindChess),
		events.ChessInviteDecline: d.handleInviteDecline(events.ChessInviteDecline),
		events.ChessMove:          d.handleChessMove,
		events.ChessResign:        d.handleChessResign,
		events.ChessEnd:           d.handleChessEnd,

		events.RandomJoin:    d.handleRandomJoin,
		events.RandomSkip:    d.handleRandomSkip,
		events.RandomLeave:   d.handleRandomLeave,
		events.RandomMessage: d.handleRandomRelay(events.RandomMessage),
		events.RandomSignal:  d.handleRandomRelay(events.RandomSignal),
	}
}

// Connect registers the user's connection, broadcasts presence, and lifts
// any disconnect-grace timers so an interrupted game resumes.
func (d *Dispatcher) Connect(user string, conn registry.Conn) {
	ids := d.registry.Register(user, conn)
	d.broadcastPresence(ids)
	d.resumeGames(user)
}

// Handle processes one inbound event to completion.
func (d *Dispatcher) Handle(ctx context.Context, user, event string, payload json.RawMessage) {
	if limit, gated := ratelimit.LimitFor(event); gated {
		if !d.limiter.Allow(user, event, limit.Max, limit.Window) {
			if limit.Reply {
				d.emit(coord.Outgoing{
					UserID:  user,
					Event:   events.ErrorEvent(event),
					Payload: events.ErrorPayload{Reason: "rate limit exceeded"},
				})
			}
			return
		}
	}

	h, ok := d.routes[event]
	if !ok {
		switch {
		case strings.HasPrefix(event, events.CallPrefix):
			h = d.handleCallRelay(event)
		case strings.HasPrefix(event, events.RoomWebRTCPrefix):
			h = d.handleRoomRelay(event)
		default:
			d.logger.Debug("unknown event", zap.String("event", event), zap.String("user", user))
			return
		}
	}

	out, err := h(ctx, user, payload)
	if err != nil {
		d.emit(coord.Outgoing{
			UserID:  user,
			Event:   events.ErrorEvent(event),
			Payload: events.ErrorPayload{Reason: reasonFor(err)},
		})
		return
	}
	d.emit(out...)
}

// Disconnect unregisters the user and sweeps every component for
// references to them. Cleanup never propagates a panic; a failing
// component is logged and the sweep continues.
func (d *Dispatcher) Disconnect(user string, conn registry.Conn) {
	ids, removed := d.registry.Unregister(user, conn)
	if !removed {
		return // a newer connection replaced this one; nothing to sweep
	}
	d.broadcastPresence(ids)

	for _, c := range d.cleanups {
		d.runCleanup(user, c)
	}
}

func (d *Dispatcher) runCleanup(user string, c cleanup) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("disconnect cleanup panicked",
				zap.String("component", c.name), zap.String("user", user), zap.Any("panic", r))
		}
	}()
	d.emit(c.fn(user)...)
}

// emit resolves each target against the registry and sends. Unreachable
// targets are dropped silently: it is the target that is gone, so the
// sender gets no error.
func (d *Dispatcher) emit(out ...coord.Outgoing) {
	for _, o := range out {
		conn, ok := d.registry.Lookup(o.UserID)
		if !ok {
			continue
		}
		frame, err := events.Marshal(o.Event, o.Payload)
		if err != nil {
			d.logger.Error("marshal outgoing", zap.String("event", o.Event), zap.Error(err))
			continue
		}
		if err := conn.Send(frame); err != nil {
			d.logger.Debug("send failed", zap.String("user", o.UserID), zap.String("event", o.Event))
		}
	}
}

func (d *Dispatcher) broadcastPresence(ids []string) {
	payload := events.OnlineUsersPayload{UserIDs: ids}
	out := make([]coord.Outgoing, 0, len(ids))
	for _, id := range ids {
		out = append(out, coord.Outgoing{UserID: id, Event: events.OnlineUsers, Payload: payload})
	}
	d.emit(out...)
}

// reasonFor maps the shared error taxonomy onto the human-readable reason
// carried by *:error events.
func reasonFor(err error) string {
	switch {
	case errors.Is(err, coord.ErrNotFound):
		return "not found"
	case errors.Is(err, coord.ErrUnauthorized):
		return "not allowed"
	case errors.Is(err, coord.ErrInvalidState):
		return "invalid action"
	case errors.Is(err, coord.ErrCapacityExceeded):
		return "room is full"
	case errors.Is(err, coord.ErrRateLimited):
		return "rate limit exceeded"
	default:
		return "internal error"
	}
}
