package domain

import "errors"

var (
	ErrNotFound   = errors.New("not found")
	ErrNoGeometry = errors.New("feature has no point geometry")
	// ErrSuperseded is returned when a newer request for the same session
	// started before this one finished.
	ErrSuperseded = errors.New("superseded by a newer request")
	// ErrUpstream wraps provider failures: bad status, network, malformed body.
	ErrUpstream = errors.New("upstream provider failure")
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

var ErrStorageUnavailable = errors.New("image storage is not configured")
