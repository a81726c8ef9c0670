package flagrelay

import (
	"errors"
	"net"
	"time"
)

// dialOne obtains one open, configured socket for a single candidate.
// Transient dial errors (refused, reset, unreachable, ...) are retried
// against the same candidate up to ConnectRetryCount times, sleeping
// ConnectRetryInterval between attempts. A connect timeout and any
// non-transient error are surfaced immediately.
func (c *Client) dialOne(addr string) (net.Conn, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		conn, err := c.dialAttempt(addr)
		if err == nil {
			return conn, nil
		}
		var cte *ConnectTimeoutError
		if errors.As(err, &cte) {
			return nil, err
		}
		if !IsRetryable(err) {
			return nil, &ConnectionError{Server: addr, Op: "connect", Err: err}
		}
		lastErr = err
		if attempt >= c.cfg.ConnectRetryCount {
			return nil, &ConnectionError{Server: addr, Op: "connect", Err: lastErr}
		}
		time.Sleep(c.cfg.ConnectRetryInterval)
	}
}

// dialAttempt performs a single dial and applies the socket options.
// A dial that exceeds ConnectTimeout returns ConnectTimeoutError; every
// other failure returns the raw error for dialOne to classify.
func (c *Client) dialAttempt(addr string) (net.Conn, error) {
	var dialer net.Dialer
	if c.cfg.ConnectTimeout != NoTimeout {
		dialer.Timeout = c.cfg.ConnectTimeout
	}

	conn, err := dialer.Dial("tcp", addr)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, &ConnectTimeoutError{Server: addr, Timeout: c.cfg.ConnectTimeout}
		}
		return nil, err
	}

	if err := c.configureSocket(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// configureSocket applies the Nagle and keepalive settings from the config.
func (c *Client) configureSocket(conn net.Conn) error {
	tcp, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}

	if err := tcp.SetNoDelay(!c.cfg.Buffered); err != nil {
		return err
	}

	if !c.cfg.KeepAlive {
		return tcp.SetKeepAlive(false)
	}
	return tcp.SetKeepAliveConfig(net.KeepAliveConfig{
		Enable:   true,
		Idle:     c.cfg.KeepIdle,
		Interval: c.cfg.KeepInterval,
		Count:    c.cfg.KeepCount,
	})
}
