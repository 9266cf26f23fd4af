package api

import (
	"errors"
	"net/http"

	"github.com/okian/civiclens/internal/domain/model"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest = errors.New("bad request")
	ErrNotFound   = errors.New("not found")
)

// statusFor maps an error kind onto a status code and a stable error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest), errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, ErrNotFound), errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, model.ErrCapacity):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, model.ErrTaskTimeout):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, model.ErrStorage):
		return http.StatusServiceUnavailable, "storage_unavailable"
	case errors.Is(err, model.ErrUnavailable):
		return http.StatusServiceUnavailable, "unavailable"
	}
	return http.StatusInternalServerError, "internal_error"
}
