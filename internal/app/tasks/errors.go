package tasks

import "errors"

var (
	ErrShuttingDown = errors.New("task manager is shutting down")
	ErrNotStarted   = errors.New("task manager not started")
)
