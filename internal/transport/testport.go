package transport

import (
	"bytes"
	"errors"
	"sync"
	"time"
)

var errTestPortClosed = errors.New("transport: test port closed")

// TestPort is an in-memory Port for tests and the daemon's dev mode. Reads
// honor the configured deadline against queued data; writes are recorded
// per call and may trigger a scripted response, which is how a fake
// display answers identification requests.
type TestPort struct {
	mu      sync.Mutex
	cond    *sync.Cond
	readBuf bytes.Buffer
	writes  [][]byte
	timeout time.Duration
	closed  bool

	writeErr   error
	shortWrite bool
	script     func(written []byte) []byte
}

func NewTestPort() *TestPort {
	p := &TestPort{}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// SetScript installs an auto-responder invoked on every Write with the
// written bytes; its non-empty return value is queued as readable data.
// The script runs with the port locked and must not call port methods.
func (p *TestPort) SetScript(fn func(written []byte) []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.script = fn
}

// QueueRead makes data available to readers, waking any blocked Read.
func (p *TestPort) QueueRead(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readBuf.Write(data)
	p.cond.Broadcast()
}

// FailWrites makes subsequent writes return err.
func (p *TestPort) FailWrites(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writeErr = err
}

// ShortWrites makes subsequent writes report one byte fewer than given.
func (p *TestPort) ShortWrites(on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shortWrite = on
}

// Writes returns a copy of every Write call's payload, in order.
func (p *TestPort) Writes() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]byte, len(p.writes))
	for i, w := range p.writes {
		out[i] = append([]byte(nil), w...)
	}
	return out
}

// WriteCount returns how many Write calls the port has seen.
func (p *TestPort) WriteCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.writes)
}

// Closed reports whether Close has been called.
func (p *TestPort) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *TestPort) SetReadTimeout(d time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errTestPortClosed
	}
	p.timeout = d
	return nil
}

func (p *TestPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, errTestPortClosed
	}
	if p.timeout <= 0 {
		if p.readBuf.Len() == 0 {
			return 0, nil
		}
		return p.readBuf.Read(b)
	}

	deadline := time.Now().Add(p.timeout)
	for p.readBuf.Len() == 0 && !p.closed {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return 0, nil
		}
		wake := time.AfterFunc(remaining, p.cond.Broadcast)
		p.cond.Wait()
		wake.Stop()
	}
	if p.closed {
		return 0, errTestPortClosed
	}
	return p.readBuf.Read(b)
}

func (p *TestPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, errTestPortClosed
	}
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	written := append([]byte(nil), b...)
	p.writes = append(p.writes, written)
	if p.script != nil {
		if resp := p.script(written); len(resp) > 0 {
			p.readBuf.Write(resp)
			p.cond.Broadcast()
		}
	}
	if p.shortWrite && len(b) > 0 {
		return len(b) - 1, nil
	}
	return len(b), nil
}

func (p *TestPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.cond.Broadcast()
	return nil
}

// SerialTestPort is a TestPort that also models a configurable line
// speed, so probing code exercises the baud fallback path against it.
type SerialTestPort struct {
	*TestPort

	rateMu  sync.Mutex
	rate    int
	baudErr error
}

func NewSerialTestPort(initialRate int) *SerialTestPort {
	return &SerialTestPort{TestPort: NewTestPort(), rate: initialRate}
}

func (p *SerialTestPort) SetBaudRate(rate int) error {
	p.rateMu.Lock()
	defer p.rateMu.Unlock()
	if p.baudErr != nil {
		return p.baudErr
	}
	p.rate = rate
	return nil
}

// Rate returns the current line speed; scripts key responses off it.
func (p *SerialTestPort) Rate() int {
	p.rateMu.Lock()
	defer p.rateMu.Unlock()
	return p.rate
}

// FailBaudChanges makes subsequent SetBaudRate calls return err.
func (p *SerialTestPort) FailBaudChanges(err error) {
	p.rateMu.Lock()
	defer p.rateMu.Unlock()
	p.baudErr = err
}
