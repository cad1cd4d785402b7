package replay

import (
	"sync"
	"time"
)

// Chunk is one captured slice of the device byte stream. Frames may
// straddle chunk boundaries; the scanner reassembles them.
type Chunk struct {
	Data      []byte
	Timestamp time.Time
}

// Source yields captured chunks in stream order. Next returns nil at the
// end of the capture. Implementations that read capture files live behind
// the pcap build tag; MockSource is always available.
type Source interface {
	Next() (*Chunk, error)
	Close() error
}

// MockSource replays scripted chunks, for tests that need a capture
// without a capture file.
type MockSource struct {
	mu     sync.Mutex
	chunks []Chunk
	next   int
	err    error
	closed bool
}

// NewMockSource builds a source over the given chunks.
func NewMockSource(chunks ...Chunk) *MockSource {
	return &MockSource{chunks: chunks}
}

// Add appends one chunk to the script.
func (m *MockSource) Add(data []byte, ts time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks = append(m.chunks, Chunk{Data: data, Timestamp: ts})
}

// FailWith makes Next return err once the scripted chunks run out.
func (m *MockSource) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Next returns the next scripted chunk, the configured error after the
// script runs out, or nil at the end of the capture.
func (m *MockSource) Next() (*Chunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.next >= len(m.chunks) {
		return nil, m.err
	}
	c := m.chunks[m.next]
	m.next++
	return &c, nil
}

// Close marks the source closed.
func (m *MockSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *MockSource) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
