package storage

import "errors"

// ErrNotConfigured means object storage settings are missing.
var ErrNotConfigured = errors.New("object storage not configured")
