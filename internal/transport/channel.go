package transport

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/braillekit/braillex/internal/monitoring"
)

// pollInterval is the reader goroutine's idle read deadline. It bounds how
// long Close waits for the reader to notice shutdown on transports whose
// Close does not interrupt a blocked read.
const pollInterval = 50 * time.Millisecond

// Channel supervises one open port: a background reader watches for
// device-initiated traffic and hands the first byte of each burst to a
// callback, which pulls the rest of the frame synchronously. Writes are
// serialized. All callback invocations happen on the reader goroutine, so
// handlers never race each other.
type Channel struct {
	port Port
	name string

	writeMu sync.Mutex

	mu      sync.Mutex
	closed  bool
	started bool

	onFirstByte func(b byte)
	readable    chan struct{}
	done        chan struct{}
}

// NewChannel wraps an open port. The channel owns the port and closes it.
func NewChannel(port Port, name string) *Channel {
	return &Channel{
		port:     port,
		name:     name,
		readable: make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Port returns the underlying port, for capability probing such as the
// BaudRateSetter assertion. Callers must not Read from it directly while
// the channel is started.
func (c *Channel) Port() Port { return c.port }

// Name identifies the channel in logs and errors.
func (c *Channel) Name() string { return c.name }

// Start launches the background reader. onFirstByte runs on the reader
// goroutine with the first byte of each traffic burst; it must finish its
// synchronous reads promptly and never block indefinitely.
func (c *Channel) Start(onFirstByte func(b byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.started {
		return fmt.Errorf("transport: channel %s already started", c.name)
	}
	if err := c.port.SetReadTimeout(pollInterval); err != nil {
		return fmt.Errorf("transport: set poll deadline on %s: %w", c.name, err)
	}
	c.onFirstByte = onFirstByte
	c.started = true
	go c.run()
	return nil
}

func (c *Channel) run() {
	defer close(c.done)
	buf := make([]byte, 1)
	for {
		if c.isClosed() {
			return
		}
		n, err := c.port.Read(buf)
		if err != nil {
			if !c.isClosed() {
				monitoring.Logf("transport: %s reader stopped: %v", c.name, err)
			}
			return
		}
		if n == 0 {
			continue
		}
		select {
		case c.readable <- struct{}{}:
		default:
		}
		if c.onFirstByte != nil {
			c.onFirstByte(buf[0])
		}
	}
}

// Read performs one read with the given deadline, then restores the poll
// deadline. A deadline expiry returns (0, nil). Only the reader callback
// may call this.
func (c *Channel) Read(p []byte, timeout time.Duration) (int, error) {
	if c.isClosed() {
		return 0, ErrClosed
	}
	if err := c.port.SetReadTimeout(timeout); err != nil {
		return 0, fmt.Errorf("transport: set read deadline on %s: %w", c.name, err)
	}
	defer c.port.SetReadTimeout(pollInterval)
	return c.port.Read(p)
}

// FrameReader adapts the channel for frame parsers: each Read applies the
// deadline and a timed-out read surfaces os.ErrDeadlineExceeded instead of
// the port's silent (0, nil).
func (c *Channel) FrameReader(timeout time.Duration) io.Reader {
	return frameReader{c: c, timeout: timeout}
}

type frameReader struct {
	c       *Channel
	timeout time.Duration
}

func (r frameReader) Read(p []byte) (int, error) {
	n, err := r.c.Read(p, r.timeout)
	if err != nil {
		return n, err
	}
	if n == 0 {
		return 0, os.ErrDeadlineExceeded
	}
	return n, nil
}

// Write sends p whole to the device. Concurrent writers are serialized so
// frames never interleave on the wire.
func (c *Channel) Write(p []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.isClosed() {
		return ErrClosed
	}
	n, err := c.port.Write(p)
	if err != nil {
		return fmt.Errorf("transport: write to %s: %w", c.name, err)
	}
	if n != len(p) {
		return fmt.Errorf("%w: %s wrote %d of %d bytes", ErrWriteFailed, c.name, n, len(p))
	}
	return nil
}

// WaitReadable blocks until device traffic arrives or the timeout lapses.
// The signal is edge-style with a single pending token; call ClearReadable
// first when only traffic after a specific request matters.
func (c *Channel) WaitReadable(timeout time.Duration) bool {
	select {
	case <-c.readable:
		return true
	case <-time.After(timeout):
		return false
	}
}

// ClearReadable discards a pending readability token left by earlier
// traffic.
func (c *Channel) ClearReadable() {
	select {
	case <-c.readable:
	default:
	}
}

// Close shuts the port and joins the reader goroutine. Closing the port
// first unblocks any in-flight read; transports with cancelable pending
// operations cancel them in their own Close. Close is idempotent.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	started := c.started
	c.mu.Unlock()

	err := c.port.Close()
	if started {
		<-c.done
	}
	if err != nil {
		return fmt.Errorf("transport: close %s: %w", c.name, err)
	}
	return nil
}

func (c *Channel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
