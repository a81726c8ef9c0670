// Package throttle spaces out calls shared by many participants, typically
// reconnect attempts against a recovering server.
package throttle

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Gate serializes units of work and guarantees that their starts are spaced
// at least a minimum interval apart, across every goroutine using the gate.
type Gate struct {
	mu  sync.Mutex
	lim *rate.Limiter
}

// NewGate creates a gate with the given minimum spacing between calls.
// A non-positive interval disables the spacing; calls are still serialized.
func NewGate(minInterval time.Duration) *Gate {
	g := &Gate{}
	if minInterval > 0 {
		g.lim = rate.NewLimiter(rate.Every(minInterval), 1)
	}
	return g
}

// Do runs fn once the interval since the previous admitted call has passed.
// Callers queue up on the gate's lock, so invocations never overlap. The
// error from fn is returned as-is; a cancelled ctx aborts the wait.
func (g *Gate) Do(ctx context.Context, fn func() error) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.lim != nil {
		if err := g.lim.Wait(ctx); err != nil {
			return err
		}
	}
	return fn()
}
