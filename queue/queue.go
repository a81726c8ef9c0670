// Package queue carries flags from ingestion to the submission workers.
package queue

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrFull is returned by Put when the queue is at capacity.
	ErrFull = errors.New("queue: full")

	// ErrClosed is returned once the queue has been closed and drained.
	ErrClosed = errors.New("queue: closed")
)

// Flag is one captured flag on its way to the scoring service.
type Flag struct {
	Value      string
	Source     string
	ReceivedAt time.Time
}

// Queue hands flags from producers (ingestion) to consumers (workers).
// Implementations must be safe for concurrent use.
type Queue interface {
	// Put enqueues a flag without blocking. ErrFull signals backpressure.
	Put(ctx context.Context, f Flag) error

	// Requeue puts back a flag that was already handed out by Get, skipping
	// any ingestion-side deduplication. ErrFull signals backpressure.
	Requeue(ctx context.Context, f Flag) error

	// Get blocks until a flag is available, ctx is done, or the queue is
	// closed and drained.
	Get(ctx context.Context) (Flag, error)

	// Len returns the number of flags currently queued.
	Len() int

	// Close stops accepting new flags. Queued flags remain retrievable.
	Close()
}
