package config

import "errors"

var (
	// ErrParsingConfig is returned when env vars or a YAML document cannot be decoded into the config struct.
	ErrParsingConfig = errors.New("failed to parse configuration")

	// ErrConfigNotLoaded is returned when a config type has not been loaded.
	ErrConfigNotLoaded = errors.New("configuration has not been loaded")

	// ErrNilPointer is returned when a nil pointer is provided to a loader.
	ErrNilPointer = errors.New("nil pointer provided to config loader")

	// ErrReadingFile is returned when a config file cannot be read.
	ErrReadingFile = errors.New("failed to read config file")
)
