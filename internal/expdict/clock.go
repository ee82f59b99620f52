package expdict

import (
	"sync/atomic"
	"time"
)

// Clock returns monotonic timestamps for staleness tracking.
//
// Values must be strictly increasing across all callers that share a
// [Registry]; comparing timestamps from different clocks is meaningless.
type Clock interface {
	Now() int64
}

// monotonicClock returns nanoseconds since its creation, bumped by one
// when two calls would otherwise return the same value.
type monotonicClock struct {
	start time.Time
	last  atomic.Int64
}

// NewClock returns a strictly increasing clock backed by the monotonic
// reading of [time.Now].
func NewClock() Clock {
	return &monotonicClock{start: time.Now()}
}

func (c *monotonicClock) Now() int64 {
	for {
		prev := c.last.Load()
		next := max(prev+1, int64(time.Since(c.start)))

		if c.last.CompareAndSwap(prev, next) {
			return next
		}
	}
}
