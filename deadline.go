package flagrelay

import "time"

// NoTimeout disables a timeout entirely: connect and read operations given
// this value wait indefinitely.
const NoTimeout = time.Duration(-1)

// Deadline tracks a single time budget shared across several waits.
// The zero budget means "check once, don't block"; a negative budget means
// the deadline never expires.
type Deadline struct {
	budget time.Duration
	start  time.Time
}

// NewDeadline starts a deadline with the given total budget.
// Pass NoTimeout for an infinite budget.
func NewDeadline(budget time.Duration) *Deadline {
	return &Deadline{budget: budget, start: time.Now()}
}

// Remaining returns the unspent part of the budget. It never goes negative:
// once the budget is exhausted it returns zero on every subsequent call.
// For an infinite budget it always returns NoTimeout.
func (d *Deadline) Remaining() time.Duration {
	if d.budget < 0 {
		return NoTimeout
	}
	rem := d.budget - time.Since(d.start)
	if rem < 0 {
		return 0
	}
	return rem
}

// Expired reports whether a finite budget has been fully spent.
func (d *Deadline) Expired() bool {
	return d.budget >= 0 && d.Remaining() == 0
}
