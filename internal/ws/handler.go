// Package ws adapts websocket connections onto the dispatcher: one
// reader loop per connection feeding events in, one writer goroutine
// draining an outbox channel. Slow consumers get dropped rather than
// stalling a broadcast.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/loomchat/loom-backend/internal/dispatch"
	"github.com/loomchat/loom-backend/internal/events"
)

const (
	outboxSize   = 32
	writeTimeout = 3 * time.Second
)

// conn implements registry.Conn over one websocket.
type conn struct {
	ws     *websocket.Conn
	outbox chan []byte
	cancel context.CancelFunc
}

// Send queues a frame for the writer goroutine. A full outbox means the
// client cannot keep up; the connection is torn down so a slow consumer
// never stalls a broadcast.
func (c *conn) Send(data []byte) error {
	select {
	case c.outbox <- data:
		return nil
	default:
		c.cancel()
		return websocket.CloseError{Code: websocket.StatusPolicyViolation, Reason: "slow consumer"}
	}
}

func (c *conn) Close() error {
	c.cancel()
	return c.ws.Close(websocket.StatusNormalClosure, "replaced")
}

// Handler upgrades the request and binds the connection to the
// pre-validated user id carried in the uid query parameter.
// Authentication happened upstream; the coordinator trusts the id.
func Handler(d *dispatch.Dispatcher, logger *zap.Logger, originPatterns []string) http.HandlerFunc {
	log := logger.Named("ws")
	return func(w http.ResponseWriter, r *http.Request) {
		uid := r.URL.Query().Get("uid")
		if uid == "" {
			http.Error(w, "missing uid", http.StatusBadRequest)
			return
		}

		sock, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: originPatterns,
		})
		if err != nil {
			log.Debug("accept failed", zap.Error(err))
			return
		}
		defer sock.Close(websocket.StatusNormalClosure, "bye")

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		c := &conn{ws: sock, outbox: make(chan []byte, outboxSize), cancel: cancel}

		// Writer goroutine: drains the outbox until the connection dies.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case frame := <-c.outbox:
					wctx, wcancel := context.WithTimeout(ctx, writeTimeout)
					err := sock.Write(wctx, websocket.MessageText, frame)
					wcancel()
					if err != nil {
						cancel()
						return
					}
				}
			}
		}()

		d.Connect(uid, c)
		defer d.Disconnect(uid, c)

		for {
			_, data, err := sock.Read(ctx)
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					log.Debug("read ended", zap.String("user", uid), zap.Error(err))
				}
				return
			}

			var env events.Envelope
			if err := json.Unmarshal(data, &env); err != nil || env.Event == "" {
				frame, _ := events.Marshal("error", events.ErrorPayload{Reason: "bad frame"})
				_ = c.Send(frame)
				continue
			}
			d.Handle(ctx, uid, env.Event, env.Payload)
		}
	}
}
