package braillex

import (
	"errors"
	"fmt"
)

var (
	// ErrDeviceNotFound reports that discovery exhausted every candidate
	// without a display answering identification.
	ErrDeviceNotFound = errors.New("braillex: no display found")

	// ErrNotBound reports an operation that needs a bound display.
	ErrNotBound = errors.New("braillex: no display bound")
)

// ConnectionError wraps a transport failure with the attachment point it
// happened on.
type ConnectionError struct {
	Port string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("braillex: connection to %s: %v", e.Port, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ProtocolError reports device behavior outside the protocol: unknown
// identification codes, impossible geometry, malformed traffic that
// framing alone cannot describe.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string { return "braillex: protocol: " + e.Reason }
