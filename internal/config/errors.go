package config

import "errors"

var (
	ErrConfigFileNotFound  = errors.New("config file not found")
	ErrConfigFileRead      = errors.New("cannot read config file")
	ErrConfigInvalid       = errors.New("invalid config file")
	ErrStorageDirEmpty     = errors.New("storage-dir cannot be empty")
	ErrDictionaryNotFound  = errors.New("dictionary not found")
	ErrDuplicateDictionary = errors.New("duplicate dictionary")
)
