package flagrelay

import (
	"fmt"
)

// RetryOnConnectionFailure runs fn, reconnecting and rerunning it when it
// fails with a transient connection failure. A closed client is reconnected
// before the first attempt. Reconnects go through the full Connect flow,
// including candidate failover, and are bounded by RetryCount; exhaustion
// returns a ConnectionError reporting the retries spent and wrapping the
// original cause.
//
// Non-transient failures and read timeouts pass through immediately without
// consuming a retry attempt — a stalled response must not turn into a storm
// of reconnects, and after a ReadTimeoutError the socket stays open (per the
// CloseOnError policy) for a later read attempt.
//
// fn may be re-executed in full, writes included. Only wrap exchanges that
// are safe to repeat.
func (c *Client) RetryOnConnectionFailure(fn func(*Client) error) error {
	if c.conn == nil {
		if err := c.Connect(); err != nil {
			return err
		}
	}

	var attempts int
	for {
		err := fn(c)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return err
		}
		if attempts >= c.cfg.RetryCount {
			return &ConnectionError{
				Server: c.server,
				Op:     "retry",
				Err:    fmt.Errorf("%d retries exhausted: %w", attempts, err),
			}
		}
		attempts++
		if err := c.Connect(); err != nil {
			return err
		}
	}
}
