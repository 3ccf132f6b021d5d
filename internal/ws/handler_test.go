package ws

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSend_SlowConsumerTornDown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := &conn{outbox: make(chan []byte, 1), cancel: cancel}

	require.NoError(t, c.Send([]byte(`{"event":"a"}`)))
	assert.Error(t, c.Send([]byte(`{"event":"b"}`)), "overflow frame rejected")

	select {
	case <-ctx.Done():
	default:
		t.Fatal("overflow must cancel the connection context")
	}
}
