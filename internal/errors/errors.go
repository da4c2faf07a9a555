package errors

import (
	"errors"
)

// Sentinel errors for different categories
var (
	// ErrInvalidInput - invalid input (malformed command, unparseable payload)
	ErrInvalidInput = errors.New("invalid input")

	// ErrTransport - the chat transport failed to deliver or update a message
	ErrTransport = errors.New("transport failure")

	// ErrTransient - transient error (retry on the next scheduled tick)
	ErrTransient = errors.New("transient error")

	// ErrMailboxCorrupt - a deposited resolution record could not be decoded;
	// the waiting coordinator logs it and keeps polling
	ErrMailboxCorrupt = errors.New("mailbox record corrupt")
)
