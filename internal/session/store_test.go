package session

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/loomchat/loom-backend/internal/coord"
)

func newTestStore() *Store {
	return NewStore(zap.NewNop())
}

func TestCreateGetDelete(t *testing.T) {
	st := newTestStore()
	s := &Session{ID: "g1", Kind: KindTicTacToe, Participants: []string{"a", "b"}}

	require.NoError(t, st.Create(s))
	assert.ErrorIs(t, st.Create(&Session{ID: "g1"}), coord.ErrInvalidState, "duplicate id rejected")

	got, ok := st.Get("g1")
	require.True(t, ok)
	assert.Equal(t, KindTicTacToe, got.Kind)
	assert.False(t, got.CreatedAt.IsZero())

	deleted, ok := st.Delete("g1")
	require.True(t, ok)
	assert.Equal(t, "g1", deleted.ID)

	_, ok = st.Get("g1")
	assert.False(t, ok)
	_, ok = st.Delete("g1")
	assert.False(t, ok, "double delete reports absence")
}

func TestUpdate(t *testing.T) {
	st := newTestStore()
	require.NoError(t, st.Create(&Session{ID: "g1", Kind: KindRPS, State: 0}))

	err := st.Update("g1", func(s *Session) error {
		s.State = s.State.(int) + 1
		return nil
	})
	require.NoError(t, err)

	got, _ := st.Get("g1")
	assert.Equal(t, 1, got.State)

	assert.ErrorIs(t, st.Update("missing", func(*Session) error { return nil }), coord.ErrNotFound)
}

func TestScheduleExpiry_FiresAndNotifies(t *testing.T) {
	st := newTestStore()
	require.NoError(t, st.Create(&Session{ID: "g1", Kind: KindChess, Participants: []string{"a"}}))

	expired := make(chan *Session, 1)
	require.NoError(t, st.ScheduleExpiry("g1", 20*time.Millisecond, func(s *Session) {
		expired <- s
	}))

	select {
	case s := <-expired:
		assert.Equal(t, "g1", s.ID)
	case <-time.After(time.Second):
		t.Fatal("expiry did not fire")
	}
	_, ok := st.Get("g1")
	assert.False(t, ok, "expired session must be gone")
}

func TestDelete_CancelsTimer(t *testing.T) {
	st := newTestStore()
	require.NoError(t, st.Create(&Session{ID: "g1", Kind: KindChess}))

	fired := make(chan struct{}, 1)
	require.NoError(t, st.ScheduleExpiry("g1", 30*time.Millisecond, func(*Session) {
		fired <- struct{}{}
	}))

	_, ok := st.Delete("g1")
	require.True(t, ok)

	select {
	case <-fired:
		t.Fatal("cancelled timer still fired")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestScheduleExpiry_RearmReplacesTimer(t *testing.T) {
	st := newTestStore()
	require.NoError(t, st.Create(&Session{ID: "g1", Kind: KindTicTacToe}))

	var mu sync.Mutex
	var firings []string

	require.NoError(t, st.ScheduleExpiry("g1", 25*time.Millisecond, func(*Session) {
		mu.Lock()
		firings = append(firings, "first")
		mu.Unlock()
	}))
	require.NoError(t, st.ScheduleExpiry("g1", 60*time.Millisecond, func(*Session) {
		mu.Lock()
		firings = append(firings, "second")
		mu.Unlock()
	}))

	time.Sleep(120 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"second"}, firings, "re-arming replaces the pending timer")
}

func TestCancelExpiry(t *testing.T) {
	st := newTestStore()
	require.NoError(t, st.Create(&Session{ID: "g1", Kind: KindTicTacToe}))

	require.NoError(t, st.ScheduleExpiry("g1", 20*time.Millisecond, nil))
	st.CancelExpiry("g1")

	time.Sleep(60 * time.Millisecond)
	_, ok := st.Get("g1")
	assert.True(t, ok, "cancelled expiry must not delete the session")
}

func TestForParticipant(t *testing.T) {
	st := newTestStore()
	require.NoError(t, st.Create(&Session{ID: "g1", Kind: KindTicTacToe, Participants: []string{"a", "b"}}))
	require.NoError(t, st.Create(&Session{ID: "g2", Kind: KindChess, Participants: []string{"a", "c"}}))
	require.NoError(t, st.Create(&Session{ID: "r1", Kind: KindVoiceRoom, Participants: []string{"a", "d"}}))

	assert.ElementsMatch(t, []string{"g1", "g2", "r1"}, st.ForParticipant("a"))
	assert.ElementsMatch(t, []string{"g1", "g2"}, st.ForParticipant("a", KindTicTacToe, KindChess))
	assert.Empty(t, st.ForParticipant("zz"))
}

func TestView(t *testing.T) {
	st := newTestStore()
	require.NoError(t, st.Create(&Session{ID: "g1", Kind: KindRPS, Participants: []string{"a", "b"}}))

	var others []string
	require.NoError(t, st.View("g1", func(s *Session) error {
		others = s.Others("a")
		return nil
	}))
	assert.Equal(t, []string{"b"}, others)

	st.Delete("g1")
	assert.ErrorIs(t, st.View("g1", func(*Session) error { return nil }), coord.ErrNotFound)
}

func TestConcurrentMutationAndReads(t *testing.T) {
	st := newTestStore()
	require.NoError(t, st.Create(&Session{ID: "r", Kind: KindVoiceRoom, Participants: []string{"a"}}))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			user := fmt.Sprintf("u%d", n)
			for j := 0; j < 200; j++ {
				_ = st.Update("r", func(s *Session) error {
					s.Participants = append(s.Participants, user)
					return nil
				})
				_ = st.View("r", func(s *Session) error {
					_ = s.HasParticipant(user)
					_ = s.Others("a")
					return nil
				})
				_ = st.ForParticipant("a", KindVoiceRoom)
				_ = st.Update("r", func(s *Session) error {
					for i, p := range s.Participants {
						if p == user {
							s.Participants = append(s.Participants[:i], s.Participants[i+1:]...)
							break
						}
					}
					return nil
				})
			}
		}(i)
	}
	wg.Wait()

	var final []string
	require.NoError(t, st.View("r", func(s *Session) error {
		final = append([]string(nil), s.Participants...)
		return nil
	}))
	assert.Equal(t, []string{"a"}, final)
}

func TestSessionHelpers(t *testing.T) {
	s := &Session{Participants: []string{"a", "b", "c"}}
	assert.True(t, s.HasParticipant("b"))
	assert.False(t, s.HasParticipant("z"))
	assert.Equal(t, []string{"a", "c"}, s.Others("b"))
}

func TestCountByKind(t *testing.T) {
	st := newTestStore()
	require.NoError(t, st.Create(&Session{ID: "1", Kind: KindRPS}))
	require.NoError(t, st.Create(&Session{ID: "2", Kind: KindRPS}))
	require.NoError(t, st.Create(&Session{ID: "3", Kind: KindVoiceRoom}))

	counts := st.CountByKind()
	assert.Equal(t, 2, counts[KindRPS])
	assert.Equal(t, 1, counts[KindVoiceRoom])
	assert.Equal(t, 3, st.Len())
}
