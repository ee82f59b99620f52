package expdict

// SharedTracker exposes the tracker shared with siblings.
func (d *Dictionary) SharedTracker() *Tracker { return d.shared }

// LocalTracker exposes the per-instance tracker.
func (d *Dictionary) LocalTracker() *Tracker { return d.local }

// HoldLocalLock takes the local exclusive lock and returns its release.
func (d *Dictionary) HoldLocalLock() func() {
	d.local.lock()

	return d.local.unlock
}

// HoldSharedLock takes the shared exclusive lock and returns its release.
func (d *Dictionary) HoldSharedLock() func() {
	d.shared.lock()

	return d.shared.unlock
}

// WaitTasks blocks until all background tasks started so far are done.
func (d *Dictionary) WaitTasks() { d.tasks.wait() }

// SetSharedSectionHook installs fn to observe the shared exclusive
// section. Call before the dictionary is used.
func (d *Dictionary) SetSharedSectionHook(fn func(entered bool)) { d.sharedSectionHook = fn }
