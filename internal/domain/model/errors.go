package model

import (
	"errors"
	"strings"
)

// Error kinds shared by every layer. Match with errors.Is.
var (
	ErrValidation  = errors.New("validation error")
	ErrProvider    = errors.New("provider error")
	ErrStorage     = errors.New("storage error")
	ErrTaskTimeout = errors.New("task timeout")
	ErrCapacity    = errors.New("capacity exceeded")
	ErrNotFound    = errors.New("not found")
	ErrUnavailable = errors.New("service unavailable")
)

// Error attaches an operation and a kind to an underlying cause.
type Error struct {
	Op   string
	Kind error
	Err  error
}

// NewError builds an *Error. A nil cause yields an error carrying only the kind.
func NewError(op string, kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Kind != nil {
		b.WriteString(e.Kind.Error())
	}
	if e.Err != nil {
		if e.Kind != nil {
			b.WriteString(": ")
		}
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// KindOf returns the first known kind in err's chain, or nil.
func KindOf(err error) error {
	for _, k := range []error{ErrValidation, ErrCapacity, ErrNotFound, ErrTaskTimeout, ErrStorage, ErrProvider, ErrUnavailable} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// KindName gives a short label for metrics and logs.
func KindName(err error) string {
	switch KindOf(err) {
	case ErrValidation:
		return "validation"
	case ErrCapacity:
		return "capacity"
	case ErrNotFound:
		return "not_found"
	case ErrTaskTimeout:
		return "timeout"
	case ErrStorage:
		return "storage"
	case ErrProvider:
		return "provider"
	case ErrUnavailable:
		return "unavailable"
	}
	return "internal"
}

// Sanitize returns the message a caller may see. Validation messages describe the
// caller's own input and pass through; everything else collapses to a fixed text.
func Sanitize(err error) string {
	if err == nil {
		return ""
	}
	switch KindOf(err) {
	case ErrValidation:
		var e *Error
		if errors.As(err, &e) && e.Err != nil {
			return e.Err.Error()
		}
		return "invalid request"
	case ErrCapacity:
		return "too many pending analyses, try again later"
	case ErrNotFound:
		return "not found"
	case ErrTaskTimeout:
		return "analysis timed out"
	case ErrStorage:
		return "storage temporarily unavailable"
	case ErrUnavailable:
		return "analysis temporarily unavailable"
	}
	return "analysis failed"
}
