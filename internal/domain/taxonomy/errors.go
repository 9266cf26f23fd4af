package taxonomy

import "errors"

// ErrInvalidTaxonomy is returned when a taxonomy definition cannot be used.
var ErrInvalidTaxonomy = errors.New("invalid taxonomy")
