// Package room manages voice-room rosters: who is in the room, who may
// speak, whose hand is raised. Rooms live in the shared session store and
// exist exactly as long as they have at least one participant.
package room

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/loomchat/loom-backend/internal/coord"
	"github.com/loomchat/loom-backend/internal/events"
	"github.com/loomchat/loom-backend/internal/profile"
	"github.com/loomchat/loom-backend/internal/session"
)

const (
	MaxParticipants = 20
	MaxSpeakers     = 6
)

type Role string

const (
	RoleListener Role = "listener"
	RoleSpeaker  Role = "speaker"
)

// Member is one participant's roster entry. Display fields are captured
// once at join time so later broadcasts need no lookups.
type Member struct {
	Role       Role
	HandRaised bool
	JoinedAt   time.Time
	FullName   string
	AvatarURL  string
}

// Roster is the voice-room state stored in the session's State slot.
type Roster struct {
	Members map[string]*Member
}

func (r *Roster) speakerCount() int {
	n := 0
	for _, m := range r.Members {
		if m.Role == RoleSpeaker {
			n++
		}
	}
	return n
}

type Manager struct {
	store    *session.Store
	profiles profile.Provider
	logger   *zap.Logger
}

func NewManager(store *session.Store, profiles profile.Provider, logger *zap.Logger) *Manager {
	return &Manager{store: store, profiles: profiles, logger: logger.Named("room")}
}

// Join adds user to the room as a listener, creating the room on first
// join. The profile lookup happens before any session lock is taken and
// its failure never aborts the join.
func (m *Manager) Join(ctx context.Context, roomID, user string) ([]coord.Outgoing, error) {
	prof := m.profiles.DisplayProfile(ctx, user)

	sess, ok := m.store.Get(roomID)
	if !ok {
		sess = &session.Session{
			ID:    roomID,
			Kind:  session.KindVoiceRoom,
			State: &Roster{Members: make(map[string]*Member)},
		}
		if err := m.store.Create(sess); err != nil {
			// Lost the creation race; the room exists now.
			sess, ok = m.store.Get(roomID)
			if !ok {
				return nil, coord.ErrNotFound
			}
		}
	}
	if sess.Kind != session.KindVoiceRoom {
		return nil, coord.ErrNotFound
	}

	var out []coord.Outgoing
	err := m.store.Update(roomID, func(s *session.Session) error {
		roster := s.State.(*Roster)
		if _, already := roster.Members[user]; already {
			out = append(out, rosterFor(user, s, roster))
			return nil
		}
		if len(roster.Members) >= MaxParticipants {
			return coord.ErrCapacityExceeded
		}
		roster.Members[user] = &Member{
			Role:      RoleListener,
			JoinedAt:  time.Now(),
			FullName:  prof.FullName,
			AvatarURL: prof.AvatarURL,
		}
		s.Participants = append(s.Participants, user)

		joined := events.RoomMemberPayload{
			RoomID:    roomID,
			UserID:    user,
			FullName:  prof.FullName,
			AvatarURL: prof.AvatarURL,
			Role:      string(RoleListener),
		}
		for _, p := range s.Others(user) {
			out = append(out, coord.Outgoing{UserID: p, Event: events.RoomParticipantJoined, Payload: joined})
		}
		out = append(out, rosterFor(user, s, roster))
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("user joined room", zap.String("room", roomID), zap.String("user", user))
	return out, nil
}

// Leave removes user from the room; an emptied room is deleted.
func (m *Manager) Leave(roomID, user string) ([]coord.Outgoing, error) {
	var out []coord.Outgoing
	empty := false
	err := m.store.Update(roomID, func(s *session.Session) error {
		roster, ok := s.State.(*Roster)
		if !ok {
			return coord.ErrNotFound
		}
		if _, member := roster.Members[user]; !member {
			return coord.ErrUnauthorized
		}
		delete(roster.Members, user)
		removeParticipant(s, user)
		empty = len(roster.Members) == 0

		left := events.RoomMemberPayload{RoomID: roomID, UserID: user}
		for _, p := range s.Participants {
			out = append(out, coord.Outgoing{UserID: p, Event: events.RoomParticipantLeft, Payload: left})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if empty {
		m.store.Delete(roomID)
	}
	m.logger.Info("user left room", zap.String("room", roomID), zap.String("user", user))
	return out, nil
}

// SetHand toggles user's membership in the hand-raised set.
func (m *Manager) SetHand(roomID, user string, raised bool) ([]coord.Outgoing, error) {
	var out []coord.Outgoing
	err := m.store.Update(roomID, func(s *session.Session) error {
		roster, ok := s.State.(*Roster)
		if !ok {
			return coord.ErrNotFound
		}
		mem, member := roster.Members[user]
		if !member {
			return coord.ErrUnauthorized
		}
		mem.HandRaised = raised

		change := events.RoomMemberPayload{RoomID: roomID, UserID: user, HandRaised: raised}
		for _, p := range s.Participants {
			out = append(out, coord.Outgoing{UserID: p, Event: events.RoomHandChanged, Payload: change})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Promote moves target into the speaker set and clears their raised hand.
// A full speaker set makes this a silent no-op rather than an error.
func (m *Manager) Promote(roomID, actor, target string) ([]coord.Outgoing, error) {
	return m.setRole(roomID, actor, target, RoleSpeaker)
}

// Demote returns target to listener.
func (m *Manager) Demote(roomID, actor, target string) ([]coord.Outgoing, error) {
	return m.setRole(roomID, actor, target, RoleListener)
}

func (m *Manager) setRole(roomID, actor, target string, role Role) ([]coord.Outgoing, error) {
	var out []coord.Outgoing
	err := m.store.Update(roomID, func(s *session.Session) error {
		roster, ok := s.State.(*Roster)
		if !ok {
			return coord.ErrNotFound
		}
		if _, member := roster.Members[actor]; !member {
			return coord.ErrUnauthorized
		}
		mem, member := roster.Members[target]
		if !member {
			return coord.ErrNotFound
		}
		if role == RoleSpeaker {
			if mem.Role == RoleSpeaker {
				return nil
			}
			if roster.speakerCount() >= MaxSpeakers {
				return nil // full speaker set: no-op
			}
			mem.Role = RoleSpeaker
			mem.HandRaised = false
		} else {
			mem.Role = RoleListener
		}

		change := events.RoomMemberPayload{
			RoomID:     roomID,
			UserID:     target,
			Role:       string(mem.Role),
			HandRaised: mem.HandRaised,
			Initiator:  actor,
		}
		for _, p := range s.Participants {
			out = append(out, coord.Outgoing{UserID: p, Event: events.RoomRoleChanged, Payload: change})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Disconnect sweeps user out of every room they belong to.
func (m *Manager) Disconnect(user string) []coord.Outgoing {
	var out []coord.Outgoing
	for _, id := range m.store.ForParticipant(user, session.KindVoiceRoom) {
		evts, err := m.Leave(id, user)
		if err != nil {
			m.logger.Warn("room cleanup failed",
				zap.String("room", id), zap.String("user", user), zap.Error(err))
			continue
		}
		out = append(out, evts...)
	}
	return out
}

// rosterFor builds the full-roster event the joining user receives.
func rosterFor(user string, s *session.Session, roster *Roster) coord.Outgoing {
	parts := make([]events.RoomParticipant, 0, len(s.Participants))
	for _, p := range s.Participants {
		mem := roster.Members[p]
		if mem == nil {
			continue
		}
		parts = append(parts, events.RoomParticipant{
			UserID:     p,
			FullName:   mem.FullName,
			AvatarURL:  mem.AvatarURL,
			Role:       string(mem.Role),
			HandRaised: mem.HandRaised,
			JoinedAt:   mem.JoinedAt,
		})
	}
	return coord.Outgoing{
		UserID:  user,
		Event:   events.RoomJoined,
		Payload: events.RoomRosterPayload{RoomID: s.ID, Participants: parts},
	}
}

func removeParticipant(s *session.Session, user string) {
	for i, p := range s.Participants {
		if p == user {
			s.Participants = append(s.Participants[:i], s.Participants[i+1:]...)
			return
		}
	}
}
