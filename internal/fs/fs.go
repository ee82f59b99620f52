// Package fs provides the filesystem abstraction used by the dictionary
// controller and its tooling.
//
// The main types are:
//   - [FS]: interface for the filesystem operations the controller needs
//   - [File]: interface for open files (satisfied by [os.File])
//   - [Real]: production implementation using [os] and atomic writes
//   - [Locker]: flock-based advisory locks for cross-process coordination
//
// Tests wrap [Real] to count or fail individual operations.
package fs

import (
	"io"
	"os"
)

// File represents an open file descriptor.
//
// This interface is satisfied by [os.File] and can be used with all
// standard library functions that accept [io.Reader], [io.Writer],
// [io.Seeker], or [io.Closer].
type File interface {
	io.ReadWriteCloser
	io.Seeker

	// Fd returns the file descriptor. See [os.File.Fd].
	// Used for low-level operations like flock and mmap.
	Fd() uintptr

	// Stat returns the [os.FileInfo] for this file. See [os.File.Stat].
	Stat() (os.FileInfo, error)
}

// FS defines the filesystem operations used for reading, persisting and
// locking dictionary files.
//
// Paths use OS semantics (like the os package and path/filepath).
//
// Implementations must be safe for concurrent use by multiple goroutines.
type FS interface {
	// Open opens a file for reading. See [os.Open].
	Open(path string) (File, error)

	// OpenFile opens a file with specified flags and permissions. See [os.OpenFile].
	OpenFile(path string, flag int, perm os.FileMode) (File, error)

	// ReadFile reads an entire file into memory. See [os.ReadFile].
	ReadFile(path string) ([]byte, error)

	// WriteFileAtomic replaces path with data using temp file + rename.
	//
	// Readers that already opened (or mapped) the previous file keep seeing
	// the previous contents; new opens see the new contents.
	WriteFileAtomic(path string, data []byte) error

	// MkdirAll creates a directory and all parents. See [os.MkdirAll].
	MkdirAll(path string, perm os.FileMode) error

	// Stat returns file info. See [os.Stat].
	Stat(path string) (os.FileInfo, error)

	// Exists reports whether a file or directory exists.
	// Returns (false, nil) if not found, (false, err) on other errors.
	Exists(path string) (bool, error)

	// Remove deletes a file or empty directory. See [os.Remove].
	Remove(path string) error

	// Rename moves/renames a file or directory. See [os.Rename].
	Rename(oldpath, newpath string) error
}

// Compile-time interface checks.
var (
	_ File = (*os.File)(nil)
	_ FS   = (*Real)(nil)
)
