package dictfile

import "errors"

// Sentinel errors returned by dictfile operations.
//
// Callers should use [errors.Is] to check error types:
//
//	if errors.Is(err, dictfile.ErrCorrupt) {
//	    // rebuild the file from the source writer
//	}
var (
	// ErrCorrupt indicates the file is damaged (bad magic, truncated,
	// inconsistent counts).
	//
	// Recovery: encode the file again.
	ErrCorrupt = errors.New("dictfile: corrupt")

	// ErrIncompatible indicates a format version this package cannot read.
	//
	// Recovery: encode the file again.
	ErrIncompatible = errors.New("dictfile: incompatible")

	// ErrClosed indicates the [Dictionary] has already been closed.
	ErrClosed = errors.New("dictfile: closed")

	// ErrInvalidInput indicates invalid arguments (empty word, negative
	// frequency, bad offset/length).
	ErrInvalidInput = errors.New("dictfile: invalid input")

	// ErrTooLarge indicates a value does not fit the on-disk field widths.
	ErrTooLarge = errors.New("dictfile: too large")
)
