package flagrelay

import (
	"errors"
	"fmt"
	"io"
	"syscall"
	"time"
)

var (
	// ErrClosed is returned when an operation is attempted on a closed client.
	ErrClosed = errors.New("flagrelay: client closed")

	// ErrNoServers is returned when a client is configured without servers.
	ErrNoServers = errors.New("flagrelay: no servers configured")
)

// ConnectTimeoutError reports that a connect attempt did not complete within
// the configured connect timeout. A timeout is not evidence that the server
// is down, so Connect does not fall back to other candidates on this error.
type ConnectTimeoutError struct {
	Server  string
	Timeout time.Duration
}

func (e *ConnectTimeoutError) Error() string {
	return fmt.Sprintf("flagrelay: connect to %s timed out after %s", e.Server, e.Timeout)
}

// Timeout implements the net.Error convention.
func (e *ConnectTimeoutError) Timeout() bool { return true }

// ReadTimeoutError reports that no data arrived within the read timeout.
// The socket is still usable (unless CloseOnError tore it down) and
// RetryOnConnectionFailure never retries this error.
type ReadTimeoutError struct {
	Timeout time.Duration
}

func (e *ReadTimeoutError) Error() string {
	return fmt.Sprintf("flagrelay: read timed out after %s", e.Timeout)
}

// Timeout implements the net.Error convention.
func (e *ReadTimeoutError) Timeout() bool { return true }

// ConnectionError wraps the underlying cause of a failed socket operation.
// A clean remote close surfaces with an io.EOF cause.
type ConnectionError struct {
	Server string
	Op     string // "connect", "write", "read", "retry"
	Err    error
}

func (e *ConnectionError) Error() string {
	if e.Server == "" {
		return fmt.Sprintf("flagrelay: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("flagrelay: %s %s: %v", e.Op, e.Server, e.Err)
}

// Unwrap returns the underlying cause for error chain inspection.
func (e *ConnectionError) Unwrap() error { return e.Err }

// retryableErrnos is the designated set of transient OS-level conditions.
// These drive both the bounded connect retry against a single candidate and
// RetryOnConnectionFailure eligibility.
var retryableErrnos = []error{
	syscall.ECONNABORTED,
	syscall.ECONNREFUSED,
	syscall.ECONNRESET,
	syscall.EHOSTUNREACH,
	syscall.EIO,
	syscall.ENETDOWN,
	syscall.ENETRESET,
	syscall.EPIPE,
	syscall.ETIMEDOUT,
}

// IsRetryable reports whether err is a transient connection failure that may
// be resolved by reconnecting. Clean EOF counts as retryable: the server hung
// up and a fresh connection is the fix. ConnectTimeoutError and
// ReadTimeoutError are never retryable, so a stalled peer does not trigger a
// storm of reconnects.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var cte *ConnectTimeoutError
	var rte *ReadTimeoutError
	if errors.As(err, &cte) || errors.As(err, &rte) {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	for _, errno := range retryableErrnos {
		if errors.Is(err, errno) {
			return true
		}
	}
	return false
}
