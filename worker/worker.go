// Package worker drains the flag queue and submits each flag to the scoring
// service over the resilient TCP client.
package worker

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"pkt.systems/pslog"

	"github.com/ctfpipe/flagrelay"
	"github.com/ctfpipe/flagrelay/queue"
	"github.com/ctfpipe/flagrelay/throttle"
)

// Config holds the submission worker settings.
type Config struct {
	// Client configures the resilient TCP clients the worker drives.
	// Servers is required.
	Client flagrelay.Config

	// PoolSize bounds how many clients (connections) the worker set shares.
	// Defaults to 1.
	PoolSize int32

	// BannerLines is the number of newline-terminated greeting lines the
	// scoring service emits after connect. They are read and discarded by
	// the client's connect hook.
	BannerLines int

	// SubmitTimeout bounds the wait for one verdict line.
	// Zero uses the client's read timeout.
	SubmitTimeout time.Duration

	// ReconnectInterval is the minimum spacing between reconnect attempts
	// across all workers sharing this configuration. Zero disables spacing.
	ReconnectInterval time.Duration

	// Patterns classify verdict lines. Empty fields use defaults.
	Patterns Patterns

	// RequeueFailed puts a flag back on the queue when submission fails
	// after all retries, instead of dropping it.
	RequeueFailed bool

	// Logger receives submission results. Defaults to a no-op logger.
	Logger pslog.Logger
}

// Worker pulls flags from the queue and submits them until its context is
// cancelled. Several workers may share one Worker value: the client pool,
// reconnect gate, and circuit breaker are all safe for concurrent use, and
// each submission checks a client out of the pool exclusively.
type Worker struct {
	cfg        Config
	q          queue.Queue
	pool       *flagrelay.ClientPool
	gate       *throttle.Gate
	breaker    *gobreaker.CircuitBreaker[string]
	classifier *Classifier
	log        pslog.Logger
}

// New creates a worker over q. The client pool connects lazily, so New
// succeeds even while the scoring service is down.
func New(cfg Config, q queue.Queue) (*Worker, error) {
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = pslog.NoopLogger()
	}

	classifier, err := NewClassifier(cfg.Patterns)
	if err != nil {
		return nil, err
	}

	clientCfg := cfg.Client
	banner := cfg.BannerLines
	userHook := clientCfg.OnConnect
	clientCfg.OnConnect = func(c *flagrelay.Client) error {
		for i := 0; i < banner; i++ {
			if _, err := c.ReadLine(0); err != nil {
				return err
			}
		}
		if userHook != nil {
			return userHook(c)
		}
		return nil
	}

	pool, err := flagrelay.NewClientPool(clientCfg, cfg.PoolSize)
	if err != nil {
		return nil, err
	}

	return &Worker{
		cfg:        cfg,
		q:          q,
		pool:       pool,
		gate:       throttle.NewGate(cfg.ReconnectInterval),
		breaker:    flagrelay.NewExchangeBreaker("submit", 1, time.Minute, 10*time.Second),
		classifier: classifier,
		log:        cfg.Logger,
	}, nil
}

// Run processes flags until ctx is cancelled or the queue is closed and
// drained. Submission failures are logged and never terminate the loop: the
// worker treats every client-level failure as recoverable via reconnect.
func (w *Worker) Run(ctx context.Context) error {
	reconnectPending := false
	for {
		f, err := w.q.Get(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrClosed) || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		line, verdict, err := w.submit(ctx, f, reconnectPending)
		if err != nil {
			reconnectPending = true
			w.log.Warn("worker.submit_failed", "flag", f.Value, "error", err)
			if w.cfg.RequeueFailed {
				// Requeue, not Put: a deduplicating queue has already seen
				// this value and would silently drop it.
				if err := w.q.Requeue(ctx, f); err != nil {
					w.log.Warn("worker.requeue_dropped", "flag", f.Value, "error", err)
				}
			}
			continue
		}

		reconnectPending = false
		w.log.Info("worker.verdict",
			"flag", f.Value,
			"verdict", verdict.String(),
			"response", line,
			"source", f.Source,
		)
	}
}

// Close destroys the client pool.
func (w *Worker) Close() { w.pool.Close() }

// submit performs one flag exchange on an exclusively leased client. After a
// failed submission the previous lease was destroyed, so the next acquire
// dials a fresh connection; that path goes through the reconnect gate to
// avoid a thundering herd against a recovering server.
func (w *Worker) submit(ctx context.Context, f queue.Flag, gated bool) (string, Verdict, error) {
	var lease *flagrelay.ClientLease
	var err error
	if gated {
		err = w.gate.Do(ctx, func() error {
			lease, err = w.pool.Acquire(ctx)
			return err
		})
	} else {
		lease, err = w.pool.Acquire(ctx)
	}
	if err != nil {
		return "", VerdictUnknown, err
	}

	line, err := w.breaker.Execute(func() (string, error) {
		return w.exchange(lease.Client(), f)
	})
	if err != nil {
		// The connection is in doubt; free the slot for a fresh dial.
		lease.Destroy()
		return "", VerdictUnknown, err
	}

	lease.Release()
	return line, w.classifier.Classify(line), nil
}

// exchange writes one newline-terminated flag and reads one verdict line,
// reconnecting on transient connection failures. Safe to re-run: the
// exchange is idempotent from the scoring service's point of view (a
// re-submitted flag classifies as duplicate at worst).
func (w *Worker) exchange(c *flagrelay.Client, f queue.Flag) (string, error) {
	var line []byte
	err := c.RetryOnConnectionFailure(func(c *flagrelay.Client) error {
		if err := c.Write([]byte(f.Value + "\n")); err != nil {
			return err
		}
		l, err := c.ReadLine(w.cfg.SubmitTimeout)
		if err != nil {
			return err
		}
		line = l
		return nil
	})
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(line), "\r\n"), nil
}
