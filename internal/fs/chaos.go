package fs

import (
	"errors"
	"io/fs"
	"math/rand/v2"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
)

// ChaosConfig controls fault injection probabilities.
// Each rate is a float64 from 0.0 (never) to 1.0 (always).
//
// The zero value disables all fault injection.
type ChaosConfig struct {
	// ReadFailRate controls how often FS.ReadFile fails, returning EIO.
	ReadFailRate float64

	// WriteFailRate controls how often FS.WriteFileAtomic fails before
	// touching the target, returning EIO, ENOSPC or EROFS. The previous
	// file is left in place, as with a failed temp write.
	WriteFailRate float64

	// OpenFailRate controls how often FS.Open and FS.OpenFile fail with
	// EACCES, EIO or EMFILE.
	OpenFailRate float64

	// StatFailRate controls how often FS.Stat and FS.Exists fail with
	// EACCES or EIO.
	StatFailRate float64
}

// ChaosMode controls how [Chaos] behaves.
type ChaosMode uint8

const (
	// ChaosModeActive enables fault-rate injection.
	// This is the default mode for a new [Chaos].
	ChaosModeActive ChaosMode = iota

	// ChaosModeNoOp passes every operation directly to the underlying FS.
	ChaosModeNoOp
)

// ChaosStats contains counts of injected faults.
type ChaosStats struct {
	ReadFails  int64
	WriteFails int64
	OpenFails  int64
	StatFails  int64
}

// chaosError marks an error as intentionally injected by [Chaos].
// It wraps the underlying error so errors.Is/As continue to work.
type chaosError struct {
	Err error
}

func (e *chaosError) Error() string {
	return "chaos: " + e.Err.Error()
}

func (e *chaosError) Unwrap() error {
	return e.Err
}

// IsChaosErr reports whether err (or any wrapped error) was injected by [Chaos].
func IsChaosErr(err error) bool {
	var injected *chaosError

	return errors.As(err, &injected)
}

// Chaos wraps an [FS] and injects random failures for testing.
//
// Injected errors are [*fs.PathError] values carrying a real
// [syscall.Errno], so os.IsPermission and friends behave like real OS
// errors. Chaos never injects ENOENT: a not-exist result always comes from
// the wrapped FS. Remove, Rename and MkdirAll are passed through.
type Chaos struct {
	fs   FS
	cfg  ChaosConfig
	mode atomic.Uint32

	mu  sync.Mutex
	rng *rand.Rand

	readFails  atomic.Int64
	writeFails atomic.Int64
	openFails  atomic.Int64
	statFails  atomic.Int64
}

// NewChaos wraps fsys. The seed makes fault decisions reproducible.
func NewChaos(fsys FS, seed uint64, cfg ChaosConfig) *Chaos {
	return &Chaos{
		fs:  fsys,
		cfg: cfg,
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// SetMode switches between injecting faults and passing through.
func (c *Chaos) SetMode(mode ChaosMode) {
	c.mode.Store(uint32(mode))
}

// Stats returns the number of faults injected so far.
func (c *Chaos) Stats() ChaosStats {
	return ChaosStats{
		ReadFails:  c.readFails.Load(),
		WriteFails: c.writeFails.Load(),
		OpenFails:  c.openFails.Load(),
		StatFails:  c.statFails.Load(),
	}
}

// should reports whether to inject a fault with the given rate and, if so,
// picks one of errnos.
func (c *Chaos) should(rate float64, errnos ...syscall.Errno) (syscall.Errno, bool) {
	if rate <= 0 || ChaosMode(c.mode.Load()) == ChaosModeNoOp {
		return 0, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.rng.Float64() >= rate {
		return 0, false
	}

	return errnos[c.rng.IntN(len(errnos))], true
}

func injected(op, path string, errno syscall.Errno) error {
	return &chaosError{Err: &fs.PathError{Op: op, Path: path, Err: errno}}
}

func (c *Chaos) Open(path string) (File, error) {
	if errno, ok := c.should(c.cfg.OpenFailRate, syscall.EACCES, syscall.EIO, syscall.EMFILE); ok {
		c.openFails.Add(1)

		return nil, injected("open", path, errno)
	}

	return c.fs.Open(path)
}

func (c *Chaos) OpenFile(path string, flag int, perm os.FileMode) (File, error) {
	if errno, ok := c.should(c.cfg.OpenFailRate, syscall.EACCES, syscall.EIO, syscall.EMFILE); ok {
		c.openFails.Add(1)

		return nil, injected("open", path, errno)
	}

	return c.fs.OpenFile(path, flag, perm)
}

func (c *Chaos) ReadFile(path string) ([]byte, error) {
	if errno, ok := c.should(c.cfg.ReadFailRate, syscall.EIO); ok {
		c.readFails.Add(1)

		return nil, injected("read", path, errno)
	}

	return c.fs.ReadFile(path)
}

func (c *Chaos) WriteFileAtomic(path string, data []byte) error {
	if errno, ok := c.should(c.cfg.WriteFailRate, syscall.EIO, syscall.ENOSPC, syscall.EROFS); ok {
		c.writeFails.Add(1)

		return injected("write", path, errno)
	}

	return c.fs.WriteFileAtomic(path, data)
}

func (c *Chaos) MkdirAll(path string, perm os.FileMode) error {
	return c.fs.MkdirAll(path, perm)
}

func (c *Chaos) Stat(path string) (os.FileInfo, error) {
	if errno, ok := c.should(c.cfg.StatFailRate, syscall.EACCES, syscall.EIO); ok {
		c.statFails.Add(1)

		return nil, injected("stat", path, errno)
	}

	return c.fs.Stat(path)
}

func (c *Chaos) Exists(path string) (bool, error) {
	if errno, ok := c.should(c.cfg.StatFailRate, syscall.EACCES, syscall.EIO); ok {
		c.statFails.Add(1)

		return false, injected("stat", path, errno)
	}

	return c.fs.Exists(path)
}

func (c *Chaos) Remove(path string) error {
	return c.fs.Remove(path)
}

func (c *Chaos) Rename(oldpath, newpath string) error {
	return c.fs.Rename(oldpath, newpath)
}

var _ FS = (*Chaos)(nil)
