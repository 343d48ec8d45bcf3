package service

import "errors"

var (
	// ErrSessionNotFound is returned for an unknown or expired session id.
	ErrSessionNotFound = errors.New("planning session not found")
	// ErrTooManySessions is returned when the live-session cap is reached.
	ErrTooManySessions = errors.New("too many planning sessions")
	// ErrNotStarted is returned when the service is used before Start.
	ErrNotStarted = errors.New("service not started")
)
