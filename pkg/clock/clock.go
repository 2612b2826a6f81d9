// Package clock provides the injectable time source used by the refill,
// decay and scheduling logic so tests can simulate time instead of sleeping.
package clock

import "time"

// Clock returns the current time. Production code passes System; tests pass
// a fake that they advance by hand.
type Clock func() time.Time

// System reads the wall clock in UTC.
func System() time.Time { return time.Now().UTC() }

// Millis converts a time to epoch milliseconds, the unit used by all
// persisted timestamps.
func Millis(t time.Time) int64 { return t.UnixMilli() }
