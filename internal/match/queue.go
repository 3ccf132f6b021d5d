// Package match pairs anonymous users into ephemeral 1:1 chat sessions,
// FIFO. Popping the queue head and binding the pair into a session is a
// single critical section so two concurrent joins can never double-match.
package match

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/loomchat/loom-backend/internal/coord"
	"github.com/loomchat/loom-backend/internal/events"
	"github.com/loomchat/loom-backend/internal/profile"
	"github.com/loomchat/loom-backend/internal/session"
)

// Pairing is the random-chat session state. The caller initiates the
// peer connection offer; the receiver waits for it. The user whose join
// completed the match is the caller, since their client learns about the
// pairing first; the waiting side receives.
type Pairing struct {
	Caller   string
	Receiver string
}

type Queue struct {
	store    *session.Store
	profiles profile.Provider
	logger   *zap.Logger

	mu        sync.Mutex // held across pop-and-bind
	waiting   []string
	inSession map[string]string // user -> session id
}

func NewQueue(store *session.Store, profiles profile.Provider, logger *zap.Logger) *Queue {
	q := &Queue{
		store:     store,
		profiles:  profiles,
		logger:    logger.Named("match"),
		inSession: make(map[string]string),
	}
	return q
}

// Join enqueues user, or pairs them with the queue head. The joiner
// becomes the caller, the popped head the receiver. A user already
// waiting or already paired cannot join again.
func (q *Queue) Join(ctx context.Context, user string) ([]coord.Outgoing, error) {
	q.mu.Lock()
	if _, bound := q.inSession[user]; bound || q.contains(user) {
		q.mu.Unlock()
		return nil, coord.ErrInvalidState
	}

	if len(q.waiting) == 0 {
		q.waiting = append(q.waiting, user)
		q.mu.Unlock()
		q.logger.Info("user searching", zap.String("user", user))
		return []coord.Outgoing{{UserID: user, Event: events.RandomSearching}}, nil
	}

	partner := q.waiting[0]
	q.waiting = q.waiting[1:]

	id := uuid.NewString()
	sess := &session.Session{
		ID:           id,
		Kind:         session.KindRandomChat,
		Participants: []string{partner, user},
		State:        &Pairing{Caller: user, Receiver: partner},
	}
	if err := q.store.Create(sess); err != nil {
		// uuid collision is not a real case; requeue the partner and bail.
		q.waiting = append([]string{partner}, q.waiting...)
		q.mu.Unlock()
		return nil, err
	}
	q.inSession[partner] = id
	q.inSession[user] = id
	q.mu.Unlock()

	q.logger.Info("matched", zap.String("caller", user), zap.String("receiver", partner), zap.String("session", id))

	// Profile enrichment happens outside the critical section.
	partnerProf := q.profiles.DisplayProfile(ctx, partner)
	userProf := q.profiles.DisplayProfile(ctx, user)

	return []coord.Outgoing{
		{UserID: user, Event: events.RandomMatched, Payload: events.RandomMatchedPayload{
			SessionID: id, PartnerID: partner, PartnerName: partnerProf.FullName, IsCaller: true,
		}},
		{UserID: partner, Event: events.RandomMatched, Payload: events.RandomMatchedPayload{
			SessionID: id, PartnerID: user, PartnerName: userProf.FullName, IsCaller: false,
		}},
	}, nil
}

// Leave removes user from the queue if still waiting, or ends their
// active pairing and notifies the partner.
func (q *Queue) Leave(user, sessionID string) ([]coord.Outgoing, error) {
	q.mu.Lock()
	if q.contains(user) {
		q.remove(user)
		q.mu.Unlock()
		return nil, nil
	}
	id, bound := q.inSession[user]
	q.mu.Unlock()
	if !bound {
		return nil, nil // nothing to leave
	}
	if sessionID != "" && sessionID != id {
		return nil, coord.ErrNotFound
	}
	return q.end(id, user), nil
}

// Skip ends the current pairing without re-queuing either side.
func (q *Queue) Skip(user, sessionID string) ([]coord.Outgoing, error) {
	q.mu.Lock()
	id, bound := q.inSession[user]
	q.mu.Unlock()
	if !bound || id != sessionID {
		return nil, coord.ErrNotFound
	}
	return q.end(id, user), nil
}

// Relay forwards a chat or signaling payload verbatim to the partner.
func (q *Queue) Relay(user, sessionID, event string, payload any) ([]coord.Outgoing, error) {
	var out []coord.Outgoing
	err := q.store.View(sessionID, func(sess *session.Session) error {
		if sess.Kind != session.KindRandomChat {
			return coord.ErrNotFound
		}
		if !sess.HasParticipant(user) {
			return coord.ErrUnauthorized
		}
		for _, p := range sess.Others(user) {
			out = append(out, coord.Outgoing{UserID: p, Event: event, Payload: payload})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Disconnect removes user from the queue and ends any active pairing.
func (q *Queue) Disconnect(user string) []coord.Outgoing {
	q.mu.Lock()
	q.remove(user)
	id, bound := q.inSession[user]
	q.mu.Unlock()
	if !bound {
		return nil
	}
	return q.end(id, user)
}

// end deletes the pairing session and tells the partner it is over.
func (q *Queue) end(id, leaver string) []coord.Outgoing {
	sess, ok := q.store.Delete(id)

	q.mu.Lock()
	for user, sid := range q.inSession {
		if sid == id {
			delete(q.inSession, user)
		}
	}
	q.mu.Unlock()

	if !ok {
		return nil
	}
	var out []coord.Outgoing
	for _, p := range sess.Others(leaver) {
		out = append(out, coord.Outgoing{
			UserID:  p,
			Event:   events.RandomEnded,
			Payload: events.SessionPayload{SessionID: id},
		})
	}
	return out
}

// WaitingLen reports the queue depth, for /stats.
func (q *Queue) WaitingLen() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiting)
}

func (q *Queue) contains(user string) bool {
	for _, w := range q.waiting {
		if w == user {
			return true
		}
	}
	return false
}

func (q *Queue) remove(user string) {
	for i, w := range q.waiting {
		if w == user {
			q.waiting = append(q.waiting[:i], q.waiting[i+1:]...)
			return
		}
	}
}
