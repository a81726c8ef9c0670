package queue

import (
	"context"
	"sync"
)

// Memory is a bounded in-process queue with optional deduplication of flag
// values. It is the default broker for single-process deployments; a
// Redis-backed implementation can replace it behind the Queue interface.
type Memory struct {
	ch chan Flag

	mu     sync.Mutex
	seen   map[string]struct{} // nil when dedup is disabled
	closed bool
}

var _ Queue = (*Memory)(nil)

// NewMemory creates a queue holding at most size flags. With dedup enabled,
// a flag value is accepted only once for the lifetime of the queue —
// duplicate submissions of the same flag are dropped at the door.
func NewMemory(size int, dedup bool) *Memory {
	m := &Memory{ch: make(chan Flag, size)}
	if dedup {
		m.seen = make(map[string]struct{})
	}
	return m
}

func (m *Memory) Put(ctx context.Context, f Flag) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.seen != nil {
		if _, dup := m.seen[f.Value]; dup {
			m.mu.Unlock()
			return nil
		}
		m.seen[f.Value] = struct{}{}
	}

	select {
	case m.ch <- f:
		m.mu.Unlock()
		return nil
	default:
		if m.seen != nil {
			// Not enqueued, allow a later retry of the same value.
			delete(m.seen, f.Value)
		}
		m.mu.Unlock()
		return ErrFull
	}
}

// Requeue puts f back without consulting the seen set: the value is already
// recorded there, and dropping a retried flag because its first attempt was
// also its registration would lose it for good.
func (m *Memory) Requeue(ctx context.Context, f Flag) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	select {
	case m.ch <- f:
		return nil
	default:
		return ErrFull
	}
}

func (m *Memory) Get(ctx context.Context) (Flag, error) {
	select {
	case f, ok := <-m.ch:
		if !ok {
			return Flag{}, ErrClosed
		}
		return f, nil
	case <-ctx.Done():
		return Flag{}, ctx.Err()
	}
}

func (m *Memory) Len() int { return len(m.ch) }

// Close stops accepting flags. Safe to call more than once.
func (m *Memory) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	close(m.ch)
}
