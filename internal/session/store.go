// Package session is the generic keyed store every ephemeral session
// lives in: turn-based games, voice rooms, random-chat pairings. Each
// component keeps its state in the Session's State slot instead of
// maintaining a parallel map, and expiry timers are armed and cancelled
// here so every session type gets the same lifecycle semantics.
package session

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/loomchat/loom-backend/internal/coord"
)

type Kind string

const (
	KindTicTacToe  Kind = "tictactoe"
	KindRPS        Kind = "rps"
	KindChess      Kind = "chess"
	KindVoiceRoom  Kind = "voice_room"
	KindRandomChat Kind = "random_chat"
)

// Session lifecycle timing.
const (
	GameIdleTimeout = time.Hour
	FinishedGrace   = 10 * time.Second
	DisconnectGrace = 30 * time.Second
)

type Session struct {
	ID           string
	Kind         Kind
	Participants []string
	CreatedAt    time.Time

	// State is the owning component's data: an engine value for games, a
	// roster for voice rooms, pairing roles for random chat. Mutate only
	// inside Store.Update.
	State any
}

// HasParticipant reports whether user is bound to the session.
func (s *Session) HasParticipant(user string) bool {
	for _, p := range s.Participants {
		if p == user {
			return true
		}
	}
	return false
}

// Others returns every participant except user.
func (s *Session) Others(user string) []string {
	out := make([]string, 0, len(s.Participants))
	for _, p := range s.Participants {
		if p != user {
			out = append(out, p)
		}
	}
	return out
}

type entry struct {
	mu      sync.Mutex
	s       *Session
	timer   *time.Timer
	deleted bool
}

type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	logger  *zap.Logger
}

func NewStore(logger *zap.Logger) *Store {
	return &Store{
		entries: make(map[string]*entry),
		logger:  logger.Named("session"),
	}
}

// Create registers s under its id. Duplicate ids are rejected so a stray
// client-supplied game id cannot clobber a live session.
func (st *Store) Create(s *Session) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, exists := st.entries[s.ID]; exists {
		return coord.ErrInvalidState
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	st.entries[s.ID] = &entry{s: s}
	st.logger.Info("session created",
		zap.String("id", s.ID),
		zap.String("kind", string(s.Kind)),
		zap.Strings("participants", s.Participants))
	return nil
}

// Get returns the session for reads of its immutable fields (ID, Kind,
// CreatedAt). Participants and State can change concurrently; read them
// through View and mutate them through Update.
func (st *Store) Get(id string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	e, ok := st.entries[id]
	if !ok {
		return nil, false
	}
	return e.s, true
}

// Update runs fn with exclusive ownership of the session. Each session is
// its own unit of mutual exclusion; two updates to different sessions do
// not serialize against each other.
func (st *Store) Update(id string, fn func(*Session) error) error {
	st.mu.Lock()
	e, ok := st.entries[id]
	st.mu.Unlock()
	if !ok {
		return coord.ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return coord.ErrNotFound
	}
	return fn(e.s)
}

// View runs fn under the same per-session lock as Update, for reads
// that must not race a concurrent mutation. fn must not retain the
// session past its return.
func (st *Store) View(id string, fn func(*Session) error) error {
	return st.Update(id, fn)
}

// Delete removes the session and cancels any pending expiry timer. The
// removed session is returned so the caller can notify its participants.
func (st *Store) Delete(id string) (*Session, bool) {
	st.mu.Lock()
	e, ok := st.entries[id]
	if ok {
		delete(st.entries, id)
	}
	st.mu.Unlock()
	if !ok {
		return nil, false
	}

	e.mu.Lock()
	e.deleted = true
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.mu.Unlock()

	st.logger.Info("session deleted", zap.String("id", id), zap.String("kind", string(e.s.Kind)))
	return e.s, true
}

// ScheduleExpiry arms a one-shot timer that deletes the session after d
// and then calls onExpire with it. Re-arming replaces the previous timer;
// a timer racing a concurrent Delete loses because the fired callback
// finds the session already gone.
func (st *Store) ScheduleExpiry(id string, d time.Duration, onExpire func(*Session)) error {
	st.mu.Lock()
	e, ok := st.entries[id]
	st.mu.Unlock()
	if !ok {
		return coord.ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return coord.ErrNotFound
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	e.timer = time.AfterFunc(d, func() {
		s, ok := st.Delete(id)
		if !ok {
			return
		}
		st.logger.Info("session expired", zap.String("id", id), zap.String("kind", string(s.Kind)))
		if onExpire != nil {
			onExpire(s)
		}
	})
	return nil
}

// CancelExpiry stops a pending timer without deleting the session, for
// example when a disconnected player returns inside the grace period.
func (st *Store) CancelExpiry(id string) {
	st.mu.Lock()
	e, ok := st.entries[id]
	st.mu.Unlock()
	if !ok {
		return
	}

	e.mu.Lock()
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.mu.Unlock()
}

// ForParticipant returns the id of every session referencing user,
// optionally filtered by kind (empty kinds means all). Membership is
// checked under each entry's lock; callers read the sessions themselves
// through View or Update, which also covers an id deleted in between.
func (st *Store) ForParticipant(user string, kinds ...Kind) []string {
	st.mu.Lock()
	entries := make([]*entry, 0, len(st.entries))
	for _, e := range st.entries {
		entries = append(entries, e)
	}
	st.mu.Unlock()

	var out []string
	for _, e := range entries {
		e.mu.Lock()
		ok := !e.deleted && e.s.HasParticipant(user)
		if ok && len(kinds) > 0 {
			ok = false
			for _, k := range kinds {
				if e.s.Kind == k {
					ok = true
					break
				}
			}
		}
		id := e.s.ID
		e.mu.Unlock()
		if ok {
			out = append(out, id)
		}
	}
	return out
}

func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.entries)
}

// CountByKind returns how many live sessions exist per kind, for /stats.
func (st *Store) CountByKind() map[Kind]int {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make(map[Kind]int)
	for _, e := range st.entries {
		out[e.s.Kind]++
	}
	return out
}
