package queue

import "errors"

// Sentinel errors returned by the mailbox.
var (
	ErrFull   = errors.New("mailbox full")
	ErrClosed = errors.New("mailbox closed")
)
