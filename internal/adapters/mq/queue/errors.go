package queue

import (
	"fmt"

	"github.com/okian/civiclens/internal/domain/model"
)

// Sentinel kinds for queue errors.
var (
	ErrFull   = fmt.Errorf("queue full: %w", model.ErrCapacity)
	ErrClosed = fmt.Errorf("queue closed: %w", model.ErrUnavailable)
)
