package planner

import "errors"

var (
	// ErrUnknownVenue is returned when a venue is not in the latest discovery batch.
	ErrUnknownVenue = errors.New("venue is not in the current discovery batch")
	// ErrSessionClosed is returned for any operation on a closed session.
	ErrSessionClosed = errors.New("planning session closed")
	// ErrBackpressure is returned when the session mailbox is full.
	ErrBackpressure = errors.New("planning session is busy")
	// ErrSuperseded is returned to a discovery whose answer was replaced by a
	// newer discovery.
	ErrSuperseded = errors.New("superseded by a newer request")
	// ErrInvalidQuery is returned for a discovery request that cannot be sent.
	ErrInvalidQuery = errors.New("invalid discovery query")
)
