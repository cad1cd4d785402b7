package braillex

import (
	"bytes"

	"github.com/braillekit/braillex/internal/braillex/wire"
	"github.com/braillekit/braillex/internal/transport"
)

// MockDevice scripts a display on an in-memory port, for tests and the
// daemon's dev mode. It answers identification with a fixed model code
// and lets callers inject key traffic.
type MockDevice struct {
	Port *transport.SerialTestPort
	id   [2]byte
}

// NewMockDevice emulates the display identified by id, answering at any
// line speed.
func NewMockDevice(id [2]byte) *MockDevice {
	md := &MockDevice{Port: transport.NewSerialTestPort(DefaultBaudRate), id: id}
	md.Port.SetScript(func(written []byte) []byte {
		if bytes.Equal(written, wire.AutoIDRequest()) {
			return wire.AutoIDResponseFrame(id)
		}
		return nil
	})
	return md
}

// Candidates plugs into WithEnumerator.
func (md *MockDevice) Candidates() []transport.Candidate {
	return []transport.Candidate{{Kind: "mock", Path: "mock0"}}
}

// Open plugs into WithOpener, handing out the scripted port.
func (md *MockDevice) Open(transport.Candidate, int) (*transport.Channel, error) {
	return transport.NewChannel(md.Port, "mock0"), nil
}

// PressKeys injects a variant A key state report holding the given raw
// indices.
func (md *MockDevice) PressKeys(keys ...int) {
	md.Port.QueueRead(wire.KeyStateFrameA(keys...))
}

// ReleaseKeys injects the all-up key state report.
func (md *MockDevice) ReleaseKeys() {
	md.Port.QueueRead(wire.KeyStateFrameA())
}
