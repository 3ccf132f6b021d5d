package ratelimit

import (
	"strings"
	"time"
)

// Limit is the ceiling for one event type. Reply controls what happens on
// rejection: critical events (call setup, game moves) get an explicit
// rate-limit error back, the rest drop silently.
type Limit struct {
	Max    int
	Window time.Duration
	Reply  bool
}

var limits = map[string]Limit{
	"typing":     {Max: 10, Window: 10 * time.Second},
	"stopTyping": {Max: 10, Window: 10 * time.Second},
	"cursor":     {Max: 100, Window: time.Second},

	"game:move":  {Max: 30, Window: time.Minute, Reply: true},
	"rps:move":   {Max: 30, Window: time.Minute, Reply: true},
	"chess:move": {Max: 30, Window: time.Minute, Reply: true},

	"game:invite":  {Max: 5, Window: time.Minute, Reply: true},
	"rps:invite":   {Max: 5, Window: time.Minute, Reply: true},
	"chess:invite": {Max: 5, Window: time.Minute, Reply: true},

	"call:offer":  {Max: 5, Window: time.Minute, Reply: true},
	"room:join":   {Max: 10, Window: time.Minute, Reply: true},
	"random:join": {Max: 10, Window: time.Minute, Reply: true},
}

// LimitFor returns the ceiling for event, falling back to the call family
// ceiling for relayed call:* traffic. Events without an entry are ungated.
func LimitFor(event string) (Limit, bool) {
	if l, ok := limits[event]; ok {
		return l, true
	}
	if strings.HasPrefix(event, "call:") {
		return limits["call:offer"], true
	}
	return Limit{}, false
}
