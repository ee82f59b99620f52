package cli

import "errors"

var (
	ErrArgCount        = errors.New("wrong number of arguments")
	ErrUnknownCommand  = errors.New("unknown command")
	ErrInvalidOption   = errors.New("invalid option")
	ErrNoDictionaries  = errors.New("no dictionaries configured")
	ErrNoWordLists     = errors.New("no word list dictionaries to watch")
	ErrSnapshotMissing = errors.New("dictionary file does not exist")
	ErrDictionaryError = errors.New("dictionary failed to sync")
)
