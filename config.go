package flagrelay

import "time"

// Config holds configuration for a Client.
// The zero value of a duration field selects the package default;
// NoTimeout means "wait indefinitely".
type Config struct {
	// Servers is the list of host:port candidates. Required: must be non-empty.
	Servers []string

	// Selector picks which candidates a Connect call attempts, and in what
	// order. If nil, Ordered() is used. Ignored when Servers has exactly one
	// entry.
	Selector Selector

	// ConnectTimeout bounds a single connect attempt.
	// NoTimeout performs a blocking connect with no deadline.
	ConnectTimeout time.Duration

	// ReadTimeout is the default budget for read operations when the caller
	// passes no per-call override. NoTimeout waits indefinitely.
	ReadTimeout time.Duration

	// ConnectRetryCount and ConnectRetryInterval bound the retry loop against
	// a single candidate when the connect attempt fails with a transient
	// error (refused, reset, unreachable, ...). A connect timeout is never
	// retried this way. A negative count disables the retry loop; zero
	// selects the default.
	ConnectRetryCount    int
	ConnectRetryInterval time.Duration

	// RetryCount bounds the reconnect attempts made by
	// RetryOnConnectionFailure. A negative count disables retrying; zero
	// selects the default.
	RetryCount int

	// CloseOnError closes the socket automatically when a read or write
	// fails, so a half-written or undefined connection is never reused.
	CloseOnError bool

	// CloseOnEOF closes the socket automatically when the server closes the
	// connection cleanly.
	CloseOnEOF bool

	// Buffered leaves Nagle's algorithm enabled. The default (false) sets
	// TCP_NODELAY, which is what a short line-oriented protocol wants.
	Buffered bool

	// KeepAlive enables TCP keepalive probing. When false, keepalive is
	// explicitly disabled on the socket. The tuning fields are only applied
	// when KeepAlive is true; zero values keep the OS defaults.
	KeepAlive    bool
	KeepIdle     time.Duration
	KeepInterval time.Duration
	KeepCount    int

	// OnConnect, if set, runs after each successful connect with the now-open
	// client, before control returns to the caller. A typical use is draining
	// the server's banner lines. An error from the hook fails the connect.
	OnConnect func(*Client) error
}

// Defaults applied by NewClient when the corresponding Config field is zero.
const (
	DefaultConnectTimeout       = 5 * time.Second
	DefaultReadTimeout          = 10 * time.Second
	DefaultConnectRetryCount    = 3
	DefaultConnectRetryInterval = time.Second
	DefaultRetryCount           = 3
)

// withDefaults returns cfg with zero-valued fields replaced by defaults.
func (cfg Config) withDefaults() Config {
	if cfg.Selector == nil {
		cfg.Selector = Ordered()
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.ConnectRetryCount == 0 {
		cfg.ConnectRetryCount = DefaultConnectRetryCount
	} else if cfg.ConnectRetryCount < 0 {
		cfg.ConnectRetryCount = 0
	}
	if cfg.ConnectRetryInterval == 0 {
		cfg.ConnectRetryInterval = DefaultConnectRetryInterval
	}
	if cfg.RetryCount == 0 {
		cfg.RetryCount = DefaultRetryCount
	} else if cfg.RetryCount < 0 {
		cfg.RetryCount = 0
	}
	return cfg
}
