package config

import "errors"

var (
	// ErrInvalidConfig marks a value that failed Validate.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrLoadConfig marks a file or env source that could not be read or decoded.
	ErrLoadConfig = errors.New("load config failed")
)
