package expdict

import "sync"

// Registry hands out one shared [Tracker] per dictionary file.
//
// Entries are created on first use and never removed; a Registry is meant
// to live as long as the process. All dictionaries that use the same
// Registry also share its [Clock].
type Registry struct {
	clock    Clock
	trackers sync.Map // map[string]*Tracker
}

// DefaultRegistry is used by [Open] when [Options.Registry] is nil.
var DefaultRegistry = NewRegistry(nil)

// NewRegistry returns an empty registry. A nil clock means [NewClock].
func NewRegistry(clock Clock) *Registry {
	if clock == nil {
		clock = NewClock()
	}

	return &Registry{clock: clock}
}

// Clock returns the clock shared by dictionaries using r.
func (r *Registry) Clock() Clock {
	return r.clock
}

// GetOrCreate returns the tracker for key, creating it on first use.
// Concurrent first calls for the same key get the same tracker.
func (r *Registry) GetOrCreate(key string) *Tracker {
	if val, ok := r.trackers.Load(key); ok {
		return val.(*Tracker) //nolint:forcetypeassert // only *Tracker is stored
	}

	val, _ := r.trackers.LoadOrStore(key, &Tracker{})

	return val.(*Tracker) //nolint:forcetypeassert // only *Tracker is stored
}

// Len returns the number of files tracked so far.
func (r *Registry) Len() int {
	n := 0

	r.trackers.Range(func(_, _ any) bool {
		n++

		return true
	})

	return n
}
