package dispatch

import (
	"context"
	"encoding/json"

	"github.com/loomchat/loom-backend/internal/coord"
	"github.com/loomchat/loom-backend/internal/events"
	"github.com/loomchat/loom-backend/internal/session"
)

// Voice rooms.

func (d *Dispatcher) handleRoomJoin(ctx context.Context, user string, payload json.RawMessage) ([]coord.Outgoing, error) {
	var p events.RoomPayload
	if err := json.Unmarshal(payload, &p); err != nil || p.RoomID == "" {
		return nil, coord.ErrInvalidState
	}
	return d.rooms.Join(ctx, p.RoomID, user)
}

func (d *Dispatcher) handleRoomLeave(_ context.Context, user string, payload json.RawMessage) ([]coord.Outgoing, error) {
	var p events.RoomPayload
	if err := json.Unmarshal(payload, &p); err != nil || p.RoomID == "" {
		return nil, coord.ErrInvalidState
	}
	return d.rooms.Leave(p.RoomID, user)
}

func (d *Dispatcher) handleHand(raised bool) handlerFunc {
	return func(_ context.Context, user string, payload json.RawMessage) ([]coord.Outgoing, error) {
		var p events.RoomPayload
		if err := json.Unmarshal(payload, &p); err != nil || p.RoomID == "" {
			return nil, coord.ErrInvalidState
		}
		return d.rooms.SetHand(p.RoomID, user, raised)
	}
}

func (d *Dispatcher) handleRole(promote bool) handlerFunc {
	return func(_ context.Context, user string, payload json.RawMessage) ([]coord.Outgoing, error) {
		var p events.RoomTargetPayload
		if err := json.Unmarshal(payload, &p); err != nil || p.RoomID == "" || p.TargetUserID == "" {
			return nil, coord.ErrInvalidState
		}
		if promote {
			return d.rooms.Promote(p.RoomID, user, p.TargetUserID)
		}
		return d.rooms.Demote(p.RoomID, user, p.TargetUserID)
	}
}

// Random chat.

func (d *Dispatcher) handleRandomJoin(ctx context.Context, user string, _ json.RawMessage) ([]coord.Outgoing, error) {
	return d.queue.Join(ctx, user)
}

func (d *Dispatcher) handleRandomSkip(_ context.Context, user string, payload json.RawMessage) ([]coord.Outgoing, error) {
	var p events.SessionPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, coord.ErrInvalidState
	}
	return d.queue.Skip(user, p.SessionID)
}

func (d *Dispatcher) handleRandomLeave(_ context.Context, user string, payload json.RawMessage) ([]coord.Outgoing, error) {
	var p events.SessionPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, coord.ErrInvalidState
	}
	return d.queue.Leave(user, p.SessionID)
}

// handleRandomRelay forwards chat payloads and signaling within an active
// pairing verbatim; only the partner sees them.
func (d *Dispatcher) handleRandomRelay(event string) handlerFunc {
	return func(_ context.Context, user string, payload json.RawMessage) ([]coord.Outgoing, error) {
		var p events.RandomMessagePayload
		if err := json.Unmarshal(payload, &p); err != nil || p.SessionID == "" {
			return nil, coord.ErrInvalidState
		}
		return d.queue.Relay(user, p.SessionID, event, json.RawMessage(payload))
	}
}

// Presence indicators: relayed to the addressee, never stored.

func (d *Dispatcher) handleIndicator(event string) handlerFunc {
	return func(_ context.Context, user string, payload json.RawMessage) ([]coord.Outgoing, error) {
		var p events.TypingPayload
		if err := json.Unmarshal(payload, &p); err != nil || p.ReceiverID == "" {
			return nil, nil // non-critical, drop
		}
		return []coord.Outgoing{{
			UserID:  p.ReceiverID,
			Event:   event,
			Payload: events.SenderPayload{SenderID: user},
		}}, nil
	}
}

func (d *Dispatcher) handleCursor(_ context.Context, user string, payload json.RawMessage) ([]coord.Outgoing, error) {
	var p events.CursorPayload
	if err := json.Unmarshal(payload, &p); err != nil || p.ReceiverID == "" {
		return nil, nil // non-critical, drop
	}
	return []coord.Outgoing{{
		UserID:  p.ReceiverID,
		Event:   events.Cursor,
		Payload: events.CursorNoticePayload{SenderID: user, X: p.X, Y: p.Y},
	}}, nil
}

// WebRTC signaling passthrough. The coordinator relays these without
// interpreting anything beyond the addressing field.

func (d *Dispatcher) handleCallRelay(event string) handlerFunc {
	return func(_ context.Context, user string, payload json.RawMessage) ([]coord.Outgoing, error) {
		var p events.RelayPayload
		if err := json.Unmarshal(payload, &p); err != nil || p.ReceiverID == "" {
			return nil, coord.ErrInvalidState
		}
		return []coord.Outgoing{{UserID: p.ReceiverID, Event: event, Payload: json.RawMessage(payload)}}, nil
	}
}

func (d *Dispatcher) handleRoomRelay(event string) handlerFunc {
	return func(_ context.Context, user string, payload json.RawMessage) ([]coord.Outgoing, error) {
		var p events.RelayPayload
		if err := json.Unmarshal(payload, &p); err != nil || p.RoomID == "" {
			return nil, coord.ErrInvalidState
		}
		var out []coord.Outgoing
		err := d.store.View(p.RoomID, func(sess *session.Session) error {
			if sess.Kind != session.KindVoiceRoom {
				return coord.ErrNotFound
			}
			if !sess.HasParticipant(user) {
				return coord.ErrUnauthorized
			}
			for _, part := range sess.Others(user) {
				out = append(out, coord.Outgoing{UserID: part, Event: event, Payload: json.RawMessage(payload)})
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		return out, nil
	}
}
