package domain

import "errors"

var (
	ErrAuthMissing         = errors.New("authentication token missing")
	ErrMaxAttemptsExceeded = errors.New("max reconnect attempts exceeded")
	ErrNotConnected        = errors.New("not connected")
	ErrAlertNotFound       = errors.New("alert not found")
	ErrLocationNotFound    = errors.New("location not found")
	ErrMalformedEvent      = errors.New("malformed event")
	ErrUnknownEvent        = errors.New("unknown event")
)
