package expdict

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/calvinalkan/dictcache/internal/fs"
	"github.com/calvinalkan/dictcache/internal/logging"
	"github.com/calvinalkan/dictcache/pkg/dictfile"
)

// DictFileExtension is the extension of every persisted dictionary file.
const DictFileExtension = ".dict"

// FilenameWithLocale returns "<name>.<locale>.dict".
func FilenameWithLocale(name, locale string) string {
	return name + "." + locale + DictFileExtension
}

// Options configure a [Dictionary].
type Options struct {
	// Dir is the storage directory holding the dictionary file. Required.
	Dir string

	// Filename is the file name inside Dir, usually built with
	// [FilenameWithLocale]. Required; must not contain a path separator.
	Filename string

	// Type tags the dictionary in logs, metrics and snapshot options
	// ("main", "user", "contacts" ...).
	Type string

	// Locale is passed through to the snapshot options.
	Locale string

	// Updatable enables the dynamic mutation methods.
	Updatable bool

	// Source provides the authoritative words. Nil means [StaticSource].
	Source Source

	// Writer is the in-memory side. Nil means a new [MemoryWriter].
	// The Dictionary takes ownership and closes it.
	Writer SourceWriter

	// Registry supplies the shared tracker for the file and the clock.
	// Nil means [DefaultRegistry].
	Registry *Registry

	// FS is used for existence checks, writes and lock files.
	// Nil means [fs.NewReal].
	FS fs.FS

	// Logger receives controller events. Nil means [logging.Default].
	Logger logging.Logger

	// Metrics is optional.
	Metrics *Metrics

	// CrossProcessLock additionally guards the shared section with an
	// flock on "<file>.lock", for processes sharing Dir.
	CrossProcessLock bool
}

// Dictionary is one instance of an expandable dictionary.
//
// All methods are safe for concurrent use. After [Dictionary.Close],
// lookups answer false or nil and mutations are ignored.
type Dictionary struct {
	path      string
	filename  string
	dictType  string
	locale    string
	updatable bool

	source  Source
	fs      fs.FS
	locker  *fs.Locker
	clock   Clock
	log     logging.Logger
	metrics *Metrics

	shared *Tracker
	local  *Tracker

	// Guarded by local.
	writer   SourceWriter
	snapshot *dictfile.Dictionary

	// hasSnapshot mirrors snapshot != nil for lock-free reload checks.
	hasSnapshot atomic.Bool
	closed      atomic.Bool

	errMu   sync.Mutex
	lastErr error

	tasks        taskGroup
	reloadQueued atomic.Bool
	pendingWrite atomic.Pointer[writeTask]

	// sharedSectionHook observes entry to (true) and exit from (false)
	// the shared exclusive section. Set by tests only.
	sharedSectionHook func(entered bool)
}

// Open creates a dictionary instance. It does not touch the file system;
// call [Dictionary.Load] or [Dictionary.SyncReloadIfRequired] to map the
// snapshot.
func Open(opts Options) (*Dictionary, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("%w: dir is required", ErrInvalidOptions)
	}

	if opts.Filename == "" || strings.ContainsRune(opts.Filename, filepath.Separator) {
		return nil, fmt.Errorf("%w: filename %q", ErrInvalidOptions, opts.Filename)
	}

	path, err := filepath.Abs(filepath.Join(opts.Dir, opts.Filename))
	if err != nil {
		return nil, fmt.Errorf("%w: resolving dir: %w", ErrInvalidOptions, err)
	}

	fsys := opts.FS
	if fsys == nil {
		fsys = fs.NewReal()
	}

	registry := opts.Registry
	if registry == nil {
		registry = DefaultRegistry
	}

	source := opts.Source
	if source == nil {
		source = StaticSource{}
	}

	writer := opts.Writer
	if writer == nil {
		writer = NewMemoryWriter(fsys)
	}

	log := opts.Logger
	if log == nil {
		log = logging.Default()
	}

	d := &Dictionary{
		path:      path,
		filename:  opts.Filename,
		dictType:  opts.Type,
		locale:    opts.Locale,
		updatable: opts.Updatable,
		source:    source,
		fs:        fsys,
		clock:     registry.Clock(),
		metrics:   opts.Metrics,
		shared:    registry.GetOrCreate(path),
		local:     &Tracker{},
		writer:    writer,
		log: log.WithFields(logging.Fields{
			logging.DictTypeFieldKey: opts.Type,
			logging.FilenameFieldKey: opts.Filename,
			logging.InstanceFieldKey: logging.NewInstanceID(),
		}),
	}

	if opts.CrossProcessLock {
		d.locker = fs.NewLocker(fsys)
	}

	return d, nil
}

// Path returns the absolute path of the dictionary file.
func (d *Dictionary) Path() string { return d.path }

// Filename returns the file name inside the storage directory.
func (d *Dictionary) Filename() string { return d.filename }

// Type returns the dictionary type tag.
func (d *Dictionary) Type() string { return d.dictType }

// IsUpdatable reports whether dynamic mutations are accepted.
func (d *Dictionary) IsUpdatable() bool { return d.updatable }

// Err returns the last reload or write failure, or nil once a later
// reload succeeded.
func (d *Dictionary) Err() error {
	d.errMu.Lock()
	defer d.errMu.Unlock()

	return d.lastErr
}

func (d *Dictionary) setErr(err error) {
	d.errMu.Lock()
	d.lastErr = err
	d.errMu.Unlock()
}

// fail logs err, counts it and keeps it as the instance error.
func (d *Dictionary) fail(stage string, err error) {
	d.log.WithError(err).WithField(logging.StageFieldKey, stage).Error("dictionary operation failed")
	d.metrics.failure(d.dictType, stage)
	d.setErr(err)
}

// Load requests the first synchronization and starts it in the background.
func (d *Dictionary) Load() {
	d.local.markRequiresReload(d.clock.Now())
	d.AsyncReloadIfRequired()
}

// MarkRequiresReload records that the source content may have changed.
// The local and shared trackers get the same timestamp, so this instance
// and every sibling using the file will re-check on their next query.
func (d *Dictionary) MarkRequiresReload() {
	now := d.clock.Now()

	d.local.markRequiresReload(now)
	d.shared.markRequiresReload(now)

	d.log.WithFields(logging.Fields{
		"request": now,
		"update":  d.shared.LastUpdateTime(),
	}).Debug("reload requested")
}

// Clear drops every word from the in-memory writer.
func (d *Dictionary) Clear() {
	d.local.lock()
	defer d.local.unlock()

	if d.closed.Load() {
		return
	}

	d.writer.Clear()
}

// AddWord adds a unigram to the writer, blocking on the local lock. Used
// while loading; not restricted to updatable dictionaries.
func (d *Dictionary) AddWord(word, shortcutTarget string, frequency int, isNotAWord bool) {
	d.local.lock()
	defer d.local.unlock()

	if d.closed.Load() {
		return
	}

	d.writer.AddUnigram(word, shortcutTarget, frequency, isNotAWord)
}

// AddBigram adds a bigram to the writer, blocking on the local lock.
func (d *Dictionary) AddBigram(prev, word string, frequency int, lastTouched int64) {
	d.local.lock()
	defer d.local.unlock()

	if d.closed.Load() {
		return
	}

	d.writer.AddBigram(prev, word, frequency, true, lastTouched)
}

// mutable reports whether a dynamic mutation may proceed, logging misuse.
func (d *Dictionary) mutable(op string) bool {
	if d.closed.Load() {
		return false
	}

	if !d.updatable {
		d.log.WithField(logging.OpFieldKey, op).Warn("mutation on a non-updatable dictionary ignored")

		return false
	}

	return true
}

// tryMutate runs fn under the local lock if it is free. Returns false when
// the mutation was dropped.
func (d *Dictionary) tryMutate(op string, fn func(w SourceWriter)) bool {
	if !d.mutable(op) {
		return false
	}

	if !d.local.tryLock() {
		d.metrics.contentionDrop(d.dictType, op)

		return false
	}

	defer d.local.unlock()

	if d.closed.Load() {
		return false
	}

	fn(d.writer)

	return true
}

// mutateBlocking runs fn under the local lock, waiting for it.
func (d *Dictionary) mutateBlocking(op string, fn func(w SourceWriter)) bool {
	if !d.mutable(op) {
		return false
	}

	d.local.lock()
	defer d.local.unlock()

	if d.closed.Load() {
		return false
	}

	fn(d.writer)

	return true
}

// AddWordDynamically adds a unigram without waiting. When a reload holds
// the local lock the word is dropped and false is returned. Staleness is
// not marked; call [Dictionary.MarkRequiresReload] once a batch is done.
func (d *Dictionary) AddWordDynamically(word, shortcutTarget string, frequency int, isNotAWord bool) bool {
	return d.tryMutate(OpAddWord, func(w SourceWriter) {
		w.AddUnigram(word, shortcutTarget, frequency, isNotAWord)
	})
}

// AddBigramDynamically adds a bigram without waiting; see
// [Dictionary.AddWordDynamically].
func (d *Dictionary) AddBigramDynamically(prev, word string, frequency int, lastTouched int64) bool {
	return d.tryMutate(OpAddBigram, func(w SourceWriter) {
		w.AddBigram(prev, word, frequency, true, lastTouched)
	})
}

// RemoveBigramDynamically removes a bigram without waiting; see
// [Dictionary.AddWordDynamically].
func (d *Dictionary) RemoveBigramDynamically(prev, word string) bool {
	return d.tryMutate(OpRemoveBigram, func(w SourceWriter) {
		w.RemoveBigram(prev, word)
	})
}

// AddWordBlocking is [Dictionary.AddWordDynamically] waiting for the lock.
func (d *Dictionary) AddWordBlocking(word, shortcutTarget string, frequency int, isNotAWord bool) bool {
	return d.mutateBlocking(OpAddWord, func(w SourceWriter) {
		w.AddUnigram(word, shortcutTarget, frequency, isNotAWord)
	})
}

// AddBigramBlocking is [Dictionary.AddBigramDynamically] waiting for the lock.
func (d *Dictionary) AddBigramBlocking(prev, word string, frequency int, lastTouched int64) bool {
	return d.mutateBlocking(OpAddBigram, func(w SourceWriter) {
		w.AddBigram(prev, word, frequency, true, lastTouched)
	})
}

// RemoveBigramBlocking is [Dictionary.RemoveBigramDynamically] waiting for
// the lock.
func (d *Dictionary) RemoveBigramBlocking(prev, word string) bool {
	return d.mutateBlocking(OpRemoveBigram, func(w SourceWriter) {
		w.RemoveBigram(prev, word)
	})
}

// IsValidWord reports whether the snapshot contains word. A stale instance
// starts a background reload first. Returns false while the local lock is
// held by a reload.
func (d *Dictionary) IsValidWord(word string) bool {
	d.AsyncReloadIfRequired()

	if !d.local.tryRLock() {
		d.metrics.contentionDrop(d.dictType, OpIsValidWord)

		return false
	}

	defer d.local.runlock()

	if d.snapshot == nil {
		return false
	}

	return d.snapshot.IsValidWord(word)
}

// IsValidBigram reports whether the snapshot holds (w1, w2) as a valid
// bigram. Same contention rules as [Dictionary.IsValidWord].
func (d *Dictionary) IsValidBigram(w1, w2 string) bool {
	d.AsyncReloadIfRequired()

	if !d.local.tryRLock() {
		d.metrics.contentionDrop(d.dictType, OpIsValidPair)

		return false
	}

	defer d.local.runlock()

	if d.snapshot == nil {
		return false
	}

	return d.snapshot.IsValidBigram(w1, w2)
}

// Suggestions returns candidates for q.
//
// Updatable dictionaries answer from the writer only. Others query both
// sides and return snapshot results followed by writer results, or
// whichever side is non-empty. Returns nil while a reload holds the lock.
func (d *Dictionary) Suggestions(q dictfile.Query) []dictfile.Suggestion {
	d.AsyncReloadIfRequired()

	// Exclusive: writer suggestions are not safe alongside mutations.
	if !d.local.tryLock() {
		d.metrics.contentionDrop(d.dictType, OpSuggestions)

		return nil
	}

	defer d.local.unlock()

	if d.closed.Load() {
		return nil
	}

	fromWriter := d.writer.Suggestions(q)

	if d.updatable || d.snapshot == nil {
		return fromWriter
	}

	fromSnapshot := d.snapshot.Suggestions(q)

	switch {
	case len(fromWriter) == 0:
		return fromSnapshot
	case len(fromSnapshot) == 0:
		return fromWriter
	default:
		return append(fromSnapshot, fromWriter...)
	}
}

// Info describes the mapped snapshot. ok is false when none is loaded.
func (d *Dictionary) Info() (info dictfile.Info, ok bool) {
	d.local.rlock()
	defer d.local.runlock()

	if d.snapshot == nil {
		return dictfile.Info{}, false
	}

	return d.snapshot.Info(), true
}

// Close waits for background tasks, then releases the snapshot and the
// writer under the local lock. Later calls return nil.
func (d *Dictionary) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return nil
	}

	if pending := d.pendingWrite.Swap(nil); pending != nil {
		pending.cancel()
	}

	d.tasks.closeAndWait()

	d.local.lock()
	defer d.local.unlock()

	var snapErr error
	if d.snapshot != nil {
		snapErr = d.snapshot.Close()
		d.snapshot = nil
		d.hasSnapshot.Store(false)
	}

	writerErr := d.writer.Close()

	err := errors.Join(snapErr, writerErr)
	if err != nil {
		d.metrics.failure(d.dictType, StageClose)

		return fmt.Errorf("closing %s: %w", d.filename, err)
	}

	return nil
}
