// Package ratelimit gates client-originated events with per-user,
// per-event sliding counters. Windows reset lazily on the next touch; a
// periodic sweep evicts counters whose window has already expired so a
// user who stops sending an event type does not pin memory forever.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SweepInterval is how often expired counters are evicted.
const SweepInterval = 5 * time.Minute

type counter struct {
	count         int
	windowResetAt time.Time
}

type Limiter struct {
	mu       sync.Mutex
	counters map[key]*counter
	logger   *zap.Logger
	now      func() time.Time // swappable in tests
}

type key struct {
	user  string
	event string
}

func New(logger *zap.Logger) *Limiter {
	return &Limiter{
		counters: make(map[key]*counter),
		logger:   logger.Named("ratelimit"),
		now:      time.Now,
	}
}

// Allow reports whether user may emit event now. The first call for a
// (user, event) pair always succeeds and opens a window; once count
// reaches max within the window, calls fail without mutating the counter.
// An elapsed window resets on the next call.
func (l *Limiter) Allow(user, event string, max int, window time.Duration) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	k := key{user: user, event: event}
	c, ok := l.counters[k]
	if !ok || now.After(c.windowResetAt) {
		l.counters[k] = &counter{count: 1, windowResetAt: now.Add(window)}
		return true
	}
	if c.count >= max {
		return false
	}
	c.count++
	return true
}

// Sweep drops every counter whose window has elapsed and returns how many
// were removed.
func (l *Limiter) Sweep() int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for k, c := range l.counters {
		if now.After(c.windowResetAt) {
			delete(l.counters, k)
			removed++
		}
	}
	return removed
}

// Run sweeps every SweepInterval until ctx is cancelled.
func (l *Limiter) Run(ctx context.Context) {
	ticker := time.NewTicker(SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.Sweep(); n > 0 {
				l.logger.Debug("swept stale counters", zap.Int("removed", n))
			}
		}
	}
}

func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.counters)
}
