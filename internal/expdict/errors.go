package expdict

import "errors"

var (
	// ErrClosed is returned by operations on a closed [Dictionary].
	ErrClosed = errors.New("expdict: closed")

	// ErrInvalidOptions is returned by [Open] when required options are
	// missing or malformed.
	ErrInvalidOptions = errors.New("expdict: invalid options")

	// ErrNotUpdatable is for callers that refuse a mutation up front. A
	// [Dictionary] opened without [Options.Updatable] ignores mutations and
	// logs a warning; [Dictionary.Err] is left untouched.
	ErrNotUpdatable = errors.New("expdict: dictionary is not updatable")
)
