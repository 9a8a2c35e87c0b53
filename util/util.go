// Package util contains small helpers for instrumenting long running computations.
package util

import "time"

// SkipThrottler allows an action at most once per period, skipping the calls in between.
type SkipThrottler struct {
	d    time.Duration
	now  func() time.Time
	last time.Time
}

func NewSkipThrottler(d time.Duration) *SkipThrottler {
	tt := &SkipThrottler{d: d, now: time.Now, last: time.Date(0, 0, 0, 0, 0, 0, 0, time.UTC)}
	return tt
}

// Ok reports whether the action may run now, and if so starts a new period.
func (tt *SkipThrottler) Ok() bool {
	now := tt.now()
	if now.Before(tt.last.Add(tt.d)) {
		return false
	}

	tt.last = now
	return true
}
