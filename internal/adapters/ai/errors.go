package ai

import "errors"

var (
	// ErrQuotaExceeded indicates the provider rejected the call for quota or billing reasons.
	ErrQuotaExceeded = errors.New("ai quota exceeded")
	// ErrNotConfigured means no provider credentials are set.
	ErrNotConfigured = errors.New("ai provider not configured")
	// ErrBadResponse means the provider answered with something we cannot interpret.
	ErrBadResponse = errors.New("ai response not understood")
)
