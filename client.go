package flagrelay

import (
	"errors"
	"io"
	"net"
	"time"
)

// Client is a resilient TCP client owning exactly one logical connection.
// Construction dials immediately; Connect can be called again at any time to
// tear the socket down and rebuild it, with candidate failover driven by the
// configured Selector.
//
// A Client is not safe for concurrent use. One goroutine owns it at a time.
type Client struct {
	cfg    Config
	conn   net.Conn
	server string
}

// NewClient creates a client and performs the initial connect.
func NewClient(cfg Config) (*Client, error) {
	if len(cfg.Servers) == 0 {
		return nil, ErrNoServers
	}
	c := &Client{cfg: cfg.withDefaults()}
	if err := c.Connect(); err != nil {
		return nil, err
	}
	return c, nil
}

// CurrentServer returns the candidate address that produced the active
// connection, or "" when the client is closed.
func (c *Client) CurrentServer() string {
	if c.conn == nil {
		return ""
	}
	return c.server
}

// Closed reports whether the client currently has no open connection.
func (c *Client) Closed() bool { return c.conn == nil }

// Connect tears down any open connection and establishes a new one.
//
// With a single configured server the selector is skipped and that server is
// dialed directly. Otherwise the selector's attempt order is walked: a
// classified connection failure moves on to the next candidate (the last one
// is reported if all fail), while a connect timeout propagates immediately —
// a timeout says the network path is congested, not that this particular
// server is down, so hammering the next candidate would not help.
//
// On success the OnConnect hook (if any) runs before Connect returns; a hook
// failure fails the connect.
func (c *Client) Connect() error {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}

	if len(c.cfg.Servers) == 1 {
		if err := c.connectTo(c.cfg.Servers[0]); err != nil {
			return err
		}
		return c.runOnConnect()
	}

	var lastErr error
	for _, addr := range c.cfg.Selector.Order(c.cfg.Servers) {
		err := c.connectTo(addr)
		if err == nil {
			return c.runOnConnect()
		}
		var cte *ConnectTimeoutError
		if errors.As(err, &cte) {
			return err
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = &ConnectionError{Op: "connect", Err: ErrNoServers}
	}
	return lastErr
}

func (c *Client) connectTo(addr string) error {
	conn, err := c.dialOne(addr)
	if err != nil {
		return err
	}
	c.conn = conn
	c.server = addr
	return nil
}

func (c *Client) runOnConnect() error {
	if c.cfg.OnConnect == nil {
		return nil
	}
	return c.cfg.OnConnect(c)
}

// Write sends the full buffer to the active connection. On failure the
// socket is closed when CloseOnError is set and the error is returned as a
// ConnectionError. Write never retries on its own; wrap the exchange in
// RetryOnConnectionFailure for that.
func (c *Client) Write(p []byte) error {
	if c.conn == nil {
		return &ConnectionError{Server: c.server, Op: "write", Err: ErrClosed}
	}
	if _, err := c.conn.Write(p); err != nil {
		if c.cfg.CloseOnError {
			c.Close()
		}
		return &ConnectionError{Server: c.server, Op: "write", Err: err}
	}
	return nil
}

// ReadPartial reads up to max bytes, waiting at most timeout for data.
// A timeout of 0 uses the configured ReadTimeout; NoTimeout waits forever.
//
// A clean remote close with no data returns (nil, io.EOF) — an EOF is a
// condition for the caller to interpret, not a failure. Timeouts return
// ReadTimeoutError, everything else ConnectionError, each honoring the
// CloseOnError / CloseOnEOF teardown policy.
func (c *Client) ReadPartial(max int, timeout time.Duration) ([]byte, error) {
	return c.readPartial(max, c.resolveTimeout(timeout))
}

// resolveTimeout maps the per-call timeout convention onto an effective wait:
// 0 selects the instance default, NoTimeout stays infinite.
func (c *Client) resolveTimeout(timeout time.Duration) time.Duration {
	if timeout == 0 {
		return c.cfg.ReadTimeout
	}
	return timeout
}

// readPartial is the single low-level read primitive. wait is the effective
// budget for this one call: NoTimeout blocks forever, 0 means the budget is
// already spent, so an empty receive queue fails immediately instead of
// blocking.
func (c *Client) readPartial(max int, wait time.Duration) ([]byte, error) {
	if c.conn == nil {
		return nil, &ConnectionError{Server: c.server, Op: "read", Err: ErrClosed}
	}

	if wait == NoTimeout {
		_ = c.conn.SetReadDeadline(time.Time{})
	} else {
		_ = c.conn.SetReadDeadline(time.Now().Add(wait))
	}

	buf := make([]byte, max)
	n, err := c.conn.Read(buf)
	if n > 0 {
		// Data beats error: a trailing EOF resurfaces on the next call.
		return buf[:n], nil
	}
	if err == nil {
		return buf[:0], nil
	}

	var netErr net.Error
	switch {
	case errors.As(err, &netErr) && netErr.Timeout():
		if c.cfg.CloseOnError {
			c.Close()
		}
		return nil, &ReadTimeoutError{Timeout: wait}
	case errors.Is(err, io.EOF):
		if c.cfg.CloseOnEOF {
			c.Close()
		}
		return nil, io.EOF
	default:
		if c.cfg.CloseOnError {
			c.Close()
		}
		return nil, &ConnectionError{Server: c.server, Op: "read", Err: err}
	}
}

// ReadEager accumulates reads until exactly n bytes are collected, all under
// one shared deadline started at call entry. On a clean remote close before
// n bytes the partial buffer is returned together with io.EOF; the caller
// decides whether a short read is acceptable. This is the primitive for
// fixed-length protocol reads.
func (c *Client) ReadEager(n int, timeout time.Duration) ([]byte, error) {
	deadline := NewDeadline(c.resolveTimeout(timeout))
	buf := make([]byte, 0, n)
	for len(buf) < n {
		chunk, err := c.readPartial(n-len(buf), deadline.Remaining())
		if err != nil {
			return buf, err
		}
		buf = append(buf, chunk...)
	}
	return buf, nil
}

// Read reads exactly n bytes or fails: a short read caused by a remote close
// escalates to a ConnectionError with an io.EOF cause. Read never silently
// returns fewer bytes than requested.
func (c *Client) Read(n int, timeout time.Duration) ([]byte, error) {
	buf, err := c.ReadEager(n, timeout)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ConnectionError{Server: c.server, Op: "read", Err: io.EOF}
		}
		return nil, err
	}
	return buf, nil
}

// ReadLine reads a newline-terminated line, one byte at a time, under one
// shared deadline. The returned line includes the separator. On a clean
// remote close before any separator the bytes accumulated so far are
// returned together with io.EOF.
//
// Byte-at-a-time is deliberate: the protocols this client serves exchange
// short lines, and not over-reading keeps the connection state trivially
// correct.
func (c *Client) ReadLine(timeout time.Duration) ([]byte, error) {
	deadline := NewDeadline(c.resolveTimeout(timeout))
	var line []byte
	for {
		chunk, err := c.readPartial(1, deadline.Remaining())
		if err != nil {
			return line, err
		}
		if len(chunk) == 0 {
			continue
		}
		line = append(line, chunk[0])
		if chunk[0] == '\n' {
			return line, nil
		}
	}
}

// Alive reports whether the connection still looks usable: false when the
// client is closed, false when a remote close or error is already pending,
// true otherwise. The probe peeks without consuming application data.
//
// This is a best-effort hint with an inherent race: the server can die
// between the probe and the next real operation. Never treat a true result
// as a guarantee that the next call will succeed.
func (c *Client) Alive() bool {
	if c.conn == nil {
		return false
	}
	return probeConn(c.conn)
}

// Close tears down the connection. It is idempotent: closing an already
// closed client is a no-op. Close-time errors are swallowed, since a failing
// close has no actionable recovery path.
func (c *Client) Close() {
	if c.conn == nil {
		return
	}
	_ = c.conn.Close()
	c.conn = nil
}
