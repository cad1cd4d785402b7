package wire

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// ErrIncomplete reports that the scanner holds only a partial frame and
// needs more bytes before it can produce a packet.
var ErrIncomplete = errors.New("wire: incomplete frame")

// FramingError reports a frame whose markers or length header are wrong.
// Recovery is a rescan for the next start marker, never a skip by the
// declared length.
type FramingError struct {
	Reason string
	Got    byte
}

func (e *FramingError) Error() string {
	return fmt.Sprintf("wire: %s (got 0x%02X)", e.Reason, e.Got)
}

// ReadPacket reads one complete frame from r, starting at the STX marker.
// Read deadline errors from r pass through unwrapped-compatible so callers
// can test them with errors.Is.
func ReadPacket(r io.Reader) (Packet, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return Packet{}, fmt.Errorf("wire: read start marker: %w", err)
	}
	if b[0] != STX {
		return Packet{}, &FramingError{Reason: "missing start marker", Got: b[0]}
	}
	return ReadPacketBody(r)
}

// ReadPacketBody reads a frame whose STX has already been consumed, as
// happens when a transport callback hands over after sighting the first
// byte.
func ReadPacketBody(r io.Reader) (Packet, error) {
	var hdr [3]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Packet{}, fmt.Errorf("wire: read packet header: %w", err)
	}
	typ := hdr[0]

	length := fixedPayloadLen
	if variableLength(typ) {
		n, err := headerLength(hdr[1], hdr[2])
		if err != nil {
			return Packet{}, err
		}
		length = n
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Packet{}, fmt.Errorf("wire: read %d payload bytes: %w", length, err)
	}

	var end [1]byte
	if _, err := io.ReadFull(r, end[:]); err != nil {
		return Packet{}, fmt.Errorf("wire: read end marker: %w", err)
	}
	if end[0] != ETX {
		return Packet{}, &FramingError{Reason: "missing end marker", Got: end[0]}
	}
	return Packet{Type: typ, Payload: payload}, nil
}

// Scanner extracts frames from an unaligned byte stream, as produced by
// capture replay or a desynchronized port. Feed appends raw bytes; Next
// returns the next frame, ErrIncomplete when more bytes are needed, or a
// FramingError after which scanning resumes at the following start marker.
type Scanner struct {
	buf []byte
}

// Feed appends raw stream bytes for scanning.
func (s *Scanner) Feed(p []byte) {
	s.buf = append(s.buf, p...)
}

// Buffered returns the number of unconsumed bytes held by the scanner.
func (s *Scanner) Buffered() int { return len(s.buf) }

// Next extracts the next frame. Bytes before the first start marker are
// discarded. A framing failure consumes only the bad start marker so a
// subsequent call rescans the remainder.
func (s *Scanner) Next() (Packet, error) {
	i := bytes.IndexByte(s.buf, STX)
	if i < 0 {
		s.buf = s.buf[:0]
		return Packet{}, ErrIncomplete
	}
	if i > 0 {
		s.buf = s.buf[i:]
	}

	pkt, n, err := parseFrame(s.buf)
	if errors.Is(err, ErrIncomplete) {
		return Packet{}, ErrIncomplete
	}
	if err != nil {
		s.buf = s.buf[1:]
		return Packet{}, err
	}
	s.buf = s.buf[n:]
	return pkt, nil
}

// parseFrame parses one frame at the start of b, which must begin with
// STX. It returns the packet and the number of bytes consumed.
func parseFrame(b []byte) (Packet, int, error) {
	if len(b) < 4 {
		return Packet{}, 0, ErrIncomplete
	}
	typ := b[1]

	length := fixedPayloadLen
	if variableLength(typ) {
		n, err := headerLength(b[2], b[3])
		if err != nil {
			return Packet{}, 0, err
		}
		length = n
	}

	total := 4 + length + 1
	if len(b) < total {
		return Packet{}, 0, ErrIncomplete
	}
	if b[total-1] != ETX {
		return Packet{}, 0, &FramingError{Reason: "missing end marker", Got: b[total-1]}
	}
	payload := make([]byte, length)
	copy(payload, b[4:4+length])
	return Packet{Type: typ, Payload: payload}, total, nil
}
