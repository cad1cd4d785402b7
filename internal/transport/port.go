// Package transport opens and supervises the byte channels braille
// displays attach through: USB serial bridges, raw HID, and direct USB
// bulk endpoints. It owns candidate enumeration, timeout-bounded reads,
// and the background reader that watches a port for device traffic.
package transport

import (
	"errors"
	"fmt"
	"io"
	"time"
)

// Port is one open device connection. Reads honor the deadline set by
// SetReadTimeout: a read that times out returns (0, nil), matching the
// serial library's contract, so callers distinguish silence from failure.
type Port interface {
	io.ReadWriteCloser

	// SetReadTimeout bounds every subsequent Read. Zero or negative means
	// reads return immediately with whatever is buffered.
	SetReadTimeout(d time.Duration) error
}

// BaudRateSetter is implemented by ports whose line speed can change
// after opening. Identification probing uses it to retry at the handheld
// models' faster rate; transports without a line speed simply don't
// implement it.
type BaudRateSetter interface {
	SetBaudRate(rate int) error
}

// Kind names a transport family.
type Kind string

const (
	KindSerial Kind = "serial"
	KindHID    Kind = "hid"
	KindUSB    Kind = "usb"
)

// Candidate is one attachment point worth probing.
type Candidate struct {
	Kind    Kind
	Path    string // device node or HID path; empty for direct USB
	VID     string
	PID     string
	Product string
}

func (c Candidate) String() string {
	if c.Path == "" {
		return string(c.Kind)
	}
	return fmt.Sprintf("%s:%s", c.Kind, c.Path)
}

var (
	// ErrClosed reports use of a channel after Close.
	ErrClosed = errors.New("transport: channel closed")

	// ErrWriteFailed reports a short write to the device.
	ErrWriteFailed = errors.New("transport: incomplete write to device")
)
