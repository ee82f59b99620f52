package fs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

var (
	// ErrWouldBlock is returned by [Locker.TryLock] when the lock is held by
	// another process.
	ErrWouldBlock = errors.New("lock would block")

	// errInodeMismatch means the lock file was replaced between open and
	// flock. Callers retry.
	errInodeMismatch = errors.New("inode mismatch")
)

// Locker provides advisory file locks using flock(2).
//
// flock applies to an inode, not a pathname, so callers lock a dedicated,
// stable lock file (for example "main.en_US.dict.lock") and never replace
// it. The dictionary file itself is replaced by atomic rename on every
// rebuild and therefore cannot be the lock target.
//
// flock is per open file description: two Locks taken by the same process
// on different descriptors still exclude each other. In-process callers are
// expected to serialize on their own mutex before taking the file lock.
//
// This implementation is Unix-only.
type Locker struct {
	fs    FS
	flock func(fd int, how int) error
}

// NewLocker creates a Locker that uses the given filesystem for file operations.
func NewLocker(fs FS) *Locker {
	return &Locker{
		fs:    fs,
		flock: unix.Flock,
	}
}

// Lock represents a held file lock. Call [Lock.Close] to release it.
type Lock struct {
	mu    sync.Mutex
	file  File
	flock func(fd int, how int) error
}

// Close releases the lock and closes the underlying file descriptor.
// Close is idempotent.
func (lk *Lock) Close() error {
	lk.mu.Lock()
	defer lk.mu.Unlock()

	if lk.file == nil {
		return nil
	}

	fd := int(lk.file.Fd())

	unlockErr := flockRetryEINTR(lk.flock, fd, unix.LOCK_UN)
	closeErr := lk.file.Close()
	lk.file = nil

	if unlockErr != nil {
		unlockErr = fmt.Errorf("unlocking lock: %w", unlockErr)
	}

	if closeErr != nil {
		closeErr = fmt.Errorf("closing lock fd: %w", closeErr)
	}

	return errors.Join(unlockErr, closeErr)
}

// Lock acquires an exclusive lock on the file at path, blocking until the
// lock is available. Missing files and parent directories are created.
func (l *Locker) Lock(path string) (*Lock, error) {
	return l.acquireLoop(path, unix.LOCK_EX, false)
}

// RLock acquires a shared lock on the file at path, blocking until the lock
// is available.
func (l *Locker) RLock(path string) (*Lock, error) {
	return l.acquireLoop(path, unix.LOCK_SH, false)
}

// TryLock attempts to acquire an exclusive lock without blocking.
// Returns [ErrWouldBlock] if the lock is held elsewhere.
func (l *Locker) TryLock(path string) (*Lock, error) {
	return l.acquireLoop(path, unix.LOCK_EX, true)
}

func (l *Locker) acquireLoop(path string, how int, nonBlocking bool) (*Lock, error) {
	const maxReplacedRetries = 100

	for range maxReplacedRetries {
		file, err := l.openLockFile(path)
		if err != nil {
			return nil, fmt.Errorf("opening lockfile: %w", err)
		}

		err = l.acquire(file, path, how, nonBlocking)
		if err == nil {
			return &Lock{file: file, flock: l.flock}, nil
		}

		_ = file.Close()

		if errors.Is(err, errInodeMismatch) {
			continue
		}

		return nil, err
	}

	return nil, fmt.Errorf("%w: lock file %q kept being replaced", ErrWouldBlock, path)
}

// acquire flocks file and verifies the inode still matches path. On failure
// the file is unlocked but not closed.
func (l *Locker) acquire(file File, path string, how int, nonBlocking bool) error {
	fd := int(file.Fd())

	flags := how
	if nonBlocking {
		flags |= unix.LOCK_NB
	}

	err := flockRetryEINTR(l.flock, fd, flags)
	if err != nil {
		if errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EAGAIN) {
			return ErrWouldBlock
		}

		return fmt.Errorf("flock: %w", err)
	}

	match, err := l.inodeMatchesPath(path, file)
	if err != nil || !match {
		_ = flockRetryEINTR(l.flock, fd, unix.LOCK_UN)

		if err == nil || errors.Is(err, os.ErrNotExist) {
			return errInodeMismatch
		}

		return fmt.Errorf("verifying inode match: %w", err)
	}

	return nil
}

const lockFilePerm = 0o600

func (l *Locker) openLockFile(path string) (File, error) {
	f, err := l.fs.OpenFile(path, os.O_RDWR|os.O_CREATE, lockFilePerm)
	if err == nil || !errors.Is(err, os.ErrNotExist) {
		return f, err
	}

	err = l.fs.MkdirAll(filepath.Dir(path), dirPerms)
	if err != nil {
		return nil, err
	}

	return l.fs.OpenFile(path, os.O_RDWR|os.O_CREATE, lockFilePerm)
}

// inodeMatchesPath compares (dev, ino) of the open descriptor with the file
// currently at path. A mismatch means the lock file was swapped while we
// waited and the lock we hold guards nothing.
func (l *Locker) inodeMatchesPath(path string, f File) (bool, error) {
	openInfo, err := f.Stat()
	if err != nil {
		return false, err
	}

	pathInfo, err := l.fs.Stat(path)
	if err != nil {
		return false, err
	}

	openSys, ok := openInfo.Sys().(*syscall.Stat_t)
	if !ok || openSys == nil {
		return false, fmt.Errorf("file.Stat Sys=%T, want *syscall.Stat_t", openInfo.Sys())
	}

	pathSys, ok := pathInfo.Sys().(*syscall.Stat_t)
	if !ok || pathSys == nil {
		return false, fmt.Errorf("fs.Stat Sys=%T, want *syscall.Stat_t", pathInfo.Sys())
	}

	return openSys.Dev == pathSys.Dev && openSys.Ino == pathSys.Ino, nil
}

// flockRetryEINTR wraps flock, retrying when a signal interrupts the call.
func flockRetryEINTR(flock func(fd int, how int) error, fd int, how int) error {
	const maxEINTRRetries = 10000

	var err error
	for range maxEINTRRetries {
		err = flock(fd, how)
		if err == nil || !errors.Is(err, unix.EINTR) {
			return err
		}
	}

	return err
}
