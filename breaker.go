package flagrelay

import (
	"time"

	"github.com/sony/gobreaker/v2"
)

// NewExchangeBreaker creates a circuit breaker sized for wrapping
// request/response exchanges against one remote service. It trips once at
// least 3 exchanges have been observed and 60% of them failed, letting
// maxRequests probes through after timeout.
func NewExchangeBreaker(name string, maxRequests uint32, interval, timeout time.Duration) *gobreaker.CircuitBreaker[string] {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: maxRequests,
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
	}
	return gobreaker.NewCircuitBreaker[string](settings)
}
