package errors

import (
	"fmt"
)

// Wrap wraps an error with context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// InvalidInput wraps error as invalid input
func InvalidInput(message string) error {
	return fmt.Errorf("%s: %w", message, ErrInvalidInput)
}

// Transport wraps error as a transport failure
func Transport(message string) error {
	return fmt.Errorf("%s: %w", message, ErrTransport)
}

// Transient wraps error as transient
func Transient(message string) error {
	return fmt.Errorf("%s: %w", message, ErrTransient)
}

// MailboxCorrupt wraps error as a corrupt mailbox record
func MailboxCorrupt(message string) error {
	return fmt.Errorf("%s: %w", message, ErrMailboxCorrupt)
}
