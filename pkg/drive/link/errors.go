package link

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout indicates no reply line arrived before the deadline.
	ErrTimeout = errors.New("reply timeout")
	// ErrClosed indicates the link has no open port.
	ErrClosed = errors.New("link closed")
)

// GarbledError indicates a reply line could not be decoded as text.
type GarbledError struct {
	Reply []byte
}

// Error implements error.
func (e *GarbledError) Error() string {
	return fmt.Sprintf("garbled reply %q", e.Reply)
}
