package repository

import (
	"fmt"

	"github.com/okian/civiclens/internal/domain/model"
)

// Sentinel kinds for task store errors.
var (
	ErrNotFound   = fmt.Errorf("task %w", model.ErrNotFound)
	ErrTaskExists = fmt.Errorf("task already exists")
)
