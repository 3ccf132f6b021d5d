package match

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/loomchat/loom-backend/internal/coord"
	"github.com/loomchat/loom-backend/internal/events"
	"github.com/loomchat/loom-backend/internal/profile"
	"github.com/loomchat/loom-backend/internal/session"
)

func newTestQueue() (*Queue, *session.Store) {
	store := session.NewStore(zap.NewNop())
	profiles := profile.Static{
		"p": {FullName: "Pat"},
		"q": {FullName: "Quinn"},
	}
	return NewQueue(store, profiles, zap.NewNop()), store
}

func TestJoin_FirstUserWaits(t *testing.T) {
	q, store := newTestQueue()

	out, err := q.Join(context.Background(), "p")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "p", out[0].UserID)
	assert.Equal(t, events.RandomSearching, out[0].Event)
	assert.Equal(t, 1, q.WaitingLen())
	assert.Equal(t, 0, store.Len())
}

func TestJoin_SecondUserPairs(t *testing.T) {
	q, store := newTestQueue()
	ctx := context.Background()

	_, err := q.Join(ctx, "p")
	require.NoError(t, err)

	out, err := q.Join(ctx, "q")
	require.NoError(t, err)
	require.Len(t, out, 2)

	byUser := map[string]events.RandomMatchedPayload{}
	for _, o := range out {
		require.Equal(t, events.RandomMatched, o.Event)
		byUser[o.UserID] = o.Payload.(events.RandomMatchedPayload)
	}

	toQ := byUser["q"]
	assert.True(t, toQ.IsCaller, "the joiner who completed the match initiates")
	assert.Equal(t, "p", toQ.PartnerID)
	assert.Equal(t, "Pat", toQ.PartnerName)

	toP := byUser["p"]
	assert.False(t, toP.IsCaller)
	assert.Equal(t, "q", toP.PartnerID)
	assert.Equal(t, "Quinn", toP.PartnerName)
	assert.Equal(t, toQ.SessionID, toP.SessionID)

	assert.Equal(t, 0, q.WaitingLen(), "queue drains on match")
	sess, ok := store.Get(toQ.SessionID)
	require.True(t, ok)
	assert.Equal(t, session.KindRandomChat, sess.Kind)
	assert.ElementsMatch(t, []string{"p", "q"}, sess.Participants)
}

func TestJoin_DuplicateRejected(t *testing.T) {
	q, _ := newTestQueue()
	ctx := context.Background()

	_, err := q.Join(ctx, "p")
	require.NoError(t, err)
	_, err = q.Join(ctx, "p")
	assert.ErrorIs(t, err, coord.ErrInvalidState, "already waiting")

	_, err = q.Join(ctx, "q")
	require.NoError(t, err)
	_, err = q.Join(ctx, "q")
	assert.ErrorIs(t, err, coord.ErrInvalidState, "already paired")
}

func TestLeave_WhileWaiting(t *testing.T) {
	q, _ := newTestQueue()
	ctx := context.Background()

	_, err := q.Join(ctx, "p")
	require.NoError(t, err)

	out, err := q.Leave("p", "")
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, 0, q.WaitingLen())

	// p can search again immediately.
	out, err = q.Join(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, events.RandomSearching, out[0].Event)
}

func TestLeave_EndsPairingAndNotifiesPartner(t *testing.T) {
	q, store := newTestQueue()
	ctx := context.Background()

	_, err := q.Join(ctx, "p")
	require.NoError(t, err)
	out, err := q.Join(ctx, "q")
	require.NoError(t, err)
	id := out[0].Payload.(events.RandomMatchedPayload).SessionID

	ended, err := q.Leave("q", id)
	require.NoError(t, err)
	require.Len(t, ended, 1)
	assert.Equal(t, "p", ended[0].UserID)
	assert.Equal(t, events.RandomEnded, ended[0].Event)
	assert.Equal(t, id, ended[0].Payload.(events.SessionPayload).SessionID)

	_, ok := store.Get(id)
	assert.False(t, ok)

	// Both sides are free to rejoin.
	_, err = q.Join(ctx, "p")
	require.NoError(t, err)
	_, err = q.Join(ctx, "q")
	require.NoError(t, err)
}

func TestSkip_RequiresMatchingSession(t *testing.T) {
	q, _ := newTestQueue()
	ctx := context.Background()

	_, err := q.Join(ctx, "p")
	require.NoError(t, err)
	out, err := q.Join(ctx, "q")
	require.NoError(t, err)
	id := out[0].Payload.(events.RandomMatchedPayload).SessionID

	_, err = q.Skip("q", "wrong-id")
	assert.ErrorIs(t, err, coord.ErrNotFound)

	ended, err := q.Skip("q", id)
	require.NoError(t, err)
	require.Len(t, ended, 1)
	assert.Equal(t, events.RandomEnded, ended[0].Event)
}

func TestRelay(t *testing.T) {
	q, _ := newTestQueue()
	ctx := context.Background()

	_, err := q.Join(ctx, "p")
	require.NoError(t, err)
	out, err := q.Join(ctx, "q")
	require.NoError(t, err)
	id := out[0].Payload.(events.RandomMatchedPayload).SessionID

	payload := events.RandomMessagePayload{SessionID: id, Message: []byte(`"hi"`)}
	relayed, err := q.Relay("q", id, events.RandomMessage, payload)
	require.NoError(t, err)
	require.Len(t, relayed, 1)
	assert.Equal(t, "p", relayed[0].UserID)
	assert.Equal(t, events.RandomMessage, relayed[0].Event)
	assert.Equal(t, payload, relayed[0].Payload)

	_, err = q.Relay("mallory", id, events.RandomMessage, payload)
	assert.ErrorIs(t, err, coord.ErrUnauthorized)

	_, err = q.Relay("q", "missing", events.RandomMessage, payload)
	assert.ErrorIs(t, err, coord.ErrNotFound)
}

func TestDisconnect(t *testing.T) {
	q, store := newTestQueue()
	ctx := context.Background()

	// Waiting user disconnects: queue empties silently.
	_, err := q.Join(ctx, "p")
	require.NoError(t, err)
	assert.Empty(t, q.Disconnect("p"))
	assert.Equal(t, 0, q.WaitingLen())

	// Paired user disconnects: partner is told.
	_, err = q.Join(ctx, "p")
	require.NoError(t, err)
	out, err := q.Join(ctx, "q")
	require.NoError(t, err)
	id := out[0].Payload.(events.RandomMatchedPayload).SessionID

	ended := q.Disconnect("p")
	require.Len(t, ended, 1)
	assert.Equal(t, "q", ended[0].UserID)
	assert.Equal(t, events.RandomEnded, ended[0].Event)

	_, ok := store.Get(id)
	assert.False(t, ok)
}
