package expdict

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/calvinalkan/dictcache/internal/fs"
	"github.com/calvinalkan/dictcache/internal/logging"
	"github.com/calvinalkan/dictcache/pkg/dictfile"
)

// isReloadRequired is a lock-free pre-check. syncReload decides again
// under the locks.
func (d *Dictionary) isReloadRequired() bool {
	if d.closed.Load() {
		return false
	}

	return !d.hasSnapshot.Load() ||
		d.local.IsOutOfDate() ||
		d.local.LastUpdateTime() < d.shared.LastUpdateTime()
}

// AsyncReloadIfRequired starts a background reload when this instance is
// stale. At most one reload is queued per instance at a time.
func (d *Dictionary) AsyncReloadIfRequired() {
	if !d.isReloadRequired() {
		return
	}

	if !d.reloadQueued.CompareAndSwap(false, true) {
		return
	}

	started := d.tasks.Go(func() {
		d.reloadQueued.Store(false)
		d.syncReload()
	})
	if !started {
		d.reloadQueued.Store(false)
	}
}

// SyncReloadIfRequired reloads or rebuilds in the calling goroutine when
// this instance is stale. A second call without an intervening
// [Dictionary.MarkRequiresReload] is a no-op.
func (d *Dictionary) SyncReloadIfRequired() {
	if !d.isReloadRequired() {
		return
	}

	d.syncReload()
}

func (d *Dictionary) lockPath() string {
	return d.path + ".lock"
}

// lockShared takes the shared tracker exclusively and, when configured,
// the cross-process file lock.
func (d *Dictionary) lockShared() (func(), error) {
	d.shared.lock()

	var lk *fs.Lock

	if d.locker != nil {
		var err error

		lk, err = d.locker.Lock(d.lockPath())
		if err != nil {
			d.shared.unlock()

			return nil, fmt.Errorf("locking %s: %w", d.lockPath(), err)
		}
	}

	if d.sharedSectionHook != nil {
		d.sharedSectionHook(true)
	}

	return func() {
		if d.sharedSectionHook != nil {
			d.sharedSectionHook(false)
		}

		if lk != nil {
			_ = lk.Close()
		}

		d.shared.unlock()
	}, nil
}

// rlockShared is lockShared in shared mode.
func (d *Dictionary) rlockShared() (func(), error) {
	d.shared.rlock()

	if d.locker == nil {
		return d.shared.runlock, nil
	}

	lk, err := d.locker.RLock(d.lockPath())
	if err != nil {
		d.shared.runlock()

		return nil, fmt.Errorf("read-locking %s: %w", d.lockPath(), err)
	}

	return func() {
		_ = lk.Close()
		d.shared.runlock()
	}, nil
}

func (d *Dictionary) syncReload() {
	unlockShared, err := d.lockShared()
	if err != nil {
		d.fail(StageLock, err)

		return
	}

	d.local.lock()
	retired, err := d.reloadLocked()
	d.local.unlock()
	unlockShared()

	d.closeRetired(retired)

	if err != nil {
		d.fail(StageReload, err)

		return
	}

	d.setErr(nil)
}

// reloadLocked decides between rebuild, reload and no-op. Must be called
// with the shared and local locks held. Replaced snapshots are returned
// for the caller to close once the locks are released.
func (d *Dictionary) reloadLocked() ([]*dictfile.Dictionary, error) {
	if d.closed.Load() {
		return nil, nil
	}

	var retired []*dictfile.Dictionary

	now := d.clock.Now()

	exists, err := d.fs.Exists(d.path)
	if err != nil {
		return nil, fmt.Errorf("checking %s: %w", d.filename, err)
	}

	rebuilt := false

	if d.shared.IsOutOfDate() || !exists {
		if !exists || d.source.HasContentChanged() {
			reason := ReasonChanged
			if !exists {
				reason = ReasonMissing
			}

			retired, err = d.rebuildLocked(now, reason, retired)
			if err != nil {
				return retired, err
			}

			rebuilt = true
		} else {
			d.shared.revertRequest()
			d.metrics.staleReverted(d.dictType)
			d.log.Debug("source unchanged, reload request reverted")
		}
	}

	// The rollback branch still maps the file when this instance has no
	// snapshot or a sibling rebuilt it since our last load.
	if !rebuilt && (d.snapshot == nil || d.local.LastUpdateTime() < d.shared.LastUpdateTime()) {
		retired, err = d.mapSnapshotLocked(retired)

		switch {
		case err == nil:
			d.metrics.reload(d.dictType)
			d.log.Debug("dictionary reloaded")
		case isDamaged(err):
			d.log.WithError(err).Warn("dictionary file unreadable, rebuilding")

			retired, err = d.rebuildLocked(now, ReasonInvalid, retired)
			if err != nil {
				return retired, err
			}
		default:
			return retired, err
		}
	}

	if d.snapshot != nil {
		if verr := d.snapshot.Validate(); verr != nil {
			d.log.WithError(verr).Warn("dictionary snapshot invalid, rebuilding")

			invalid := d.snapshot

			retired, err = d.rebuildLocked(now, ReasonInvalid, retired)
			if err != nil {
				// Never answer queries from a snapshot that failed validation.
				if d.snapshot == invalid {
					retired = d.dropSnapshotLocked(retired)
				}

				return retired, err
			}
		}
	}

	d.local.setLastUpdateTime(now)

	return retired, nil
}

// rebuildLocked repopulates the writer if the source asks for it,
// serializes it to the file and maps the result.
func (d *Dictionary) rebuildLocked(now int64, reason string, retired []*dictfile.Dictionary) ([]*dictfile.Dictionary, error) {
	start := time.Now()

	err := d.writeLocked()
	if err != nil {
		return retired, err
	}

	// Siblings compare against this to decide whether to reload.
	d.shared.setLastUpdateTime(now)

	retired, err = d.mapSnapshotLocked(retired)
	if err != nil {
		return retired, err
	}

	if n, ok := d.source.(RebuildNotifier); ok {
		n.Rebuilt()
	}

	d.metrics.rebuild(d.dictType, reason, time.Since(start).Seconds())
	d.log.WithField(logging.ReasonFieldKey, reason).Debug("dictionary rebuilt")

	return retired, nil
}

// writeLocked serializes the writer, reloading it from the source first
// when the source requires that.
func (d *Dictionary) writeLocked() error {
	if d.source.NeedsReloadBeforeWriting() {
		d.writer.Clear()

		err := d.source.LoadInto(d.writer)
		if err != nil {
			return fmt.Errorf("loading source for %s: %w", d.filename, err)
		}
	}

	err := d.writer.SerializeTo(d.path)
	if err != nil {
		return fmt.Errorf("serializing %s: %w", d.filename, err)
	}

	return nil
}

// mapSnapshotLocked maps the current file and swaps it in. The previous
// snapshot is appended to retired.
func (d *Dictionary) mapSnapshotLocked(retired []*dictfile.Dictionary) ([]*dictfile.Dictionary, error) {
	snap, err := dictfile.Open(d.path, 0, 0, dictfile.Options{DictType: d.dictType, Locale: d.locale})
	if err != nil {
		return retired, fmt.Errorf("mapping %s: %w", d.filename, err)
	}

	if d.snapshot != nil {
		retired = append(retired, d.snapshot)
	}

	d.snapshot = snap
	d.hasSnapshot.Store(true)

	return retired, nil
}

// dropSnapshotLocked unloads the current snapshot and appends it to retired.
func (d *Dictionary) dropSnapshotLocked(retired []*dictfile.Dictionary) []*dictfile.Dictionary {
	retired = append(retired, d.snapshot)
	d.snapshot = nil
	d.hasSnapshot.Store(false)

	return retired
}

func (d *Dictionary) closeRetired(retired []*dictfile.Dictionary) {
	for _, old := range retired {
		err := old.Close()
		if err != nil {
			d.log.WithError(err).Warn("closing replaced snapshot")
		}
	}
}

// isDamaged reports errors that a rebuild can repair.
func isDamaged(err error) bool {
	return errors.Is(err, dictfile.ErrCorrupt) ||
		errors.Is(err, dictfile.ErrIncompatible) ||
		errors.Is(err, os.ErrNotExist)
}
