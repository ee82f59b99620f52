package expdict

import (
	"sync"
	"sync/atomic"
)

// Tracker pairs a reader/writer lock with the two staleness timestamps.
//
// Timestamps are atomics so that cheap "is a reload required?" checks can
// read them without the lock; every decision based on them is re-made
// under the lock by the reload path.
type Tracker struct {
	mu sync.RWMutex

	lastUpdateRequestTime atomic.Int64
	lastUpdateTime        atomic.Int64
}

// IsOutOfDate reports whether an update was requested after the last one
// completed.
func (t *Tracker) IsOutOfDate() bool {
	return t.lastUpdateRequestTime.Load() > t.lastUpdateTime.Load()
}

// LastUpdateRequestTime returns when staleness was last asserted.
func (t *Tracker) LastUpdateRequestTime() int64 {
	return t.lastUpdateRequestTime.Load()
}

// LastUpdateTime returns when the last rebuild or reload completed.
func (t *Tracker) LastUpdateTime() int64 {
	return t.lastUpdateTime.Load()
}

func (t *Tracker) markRequiresReload(now int64) {
	t.lastUpdateRequestTime.Store(now)
}

func (t *Tracker) setLastUpdateTime(now int64) {
	t.lastUpdateTime.Store(now)
}

// revertRequest collapses a spurious staleness signal.
func (t *Tracker) revertRequest() {
	t.lastUpdateRequestTime.Store(t.lastUpdateTime.Load())
}

func (t *Tracker) lock()          { t.mu.Lock() }
func (t *Tracker) unlock()        { t.mu.Unlock() }
func (t *Tracker) rlock()         { t.mu.RLock() }
func (t *Tracker) runlock()       { t.mu.RUnlock() }
func (t *Tracker) tryLock() bool  { return t.mu.TryLock() }
func (t *Tracker) tryRLock() bool { return t.mu.TryRLock() }
