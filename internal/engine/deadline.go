package engine

import "time"

// deadline tracks the current question's time budget. It is pure
// bookkeeping: expiry is evaluated by comparing wall clocks at call time,
// never by a background timer.
type deadline struct {
	armedAt time.Time
	limit   time.Duration
}

func (d deadline) expiresAt() time.Time {
	return d.armedAt.Add(d.limit)
}

func (d deadline) expired(now time.Time) bool {
	return !now.Before(d.expiresAt())
}

// elapsed is clamped to [0, limit] so a late submission grades exactly
// like a timeout.
func (d deadline) elapsed(now time.Time) time.Duration {
	e := now.Sub(d.armedAt)
	if e < 0 {
		return 0
	}
	if e > d.limit {
		return d.limit
	}
	return e
}
