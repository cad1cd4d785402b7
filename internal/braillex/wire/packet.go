// Package wire implements the framed binary protocol spoken by BRAILLEX
// displays: packet framing and extraction, braille cell encoding, and key
// bitstream decoding for both protocol generations.
package wire

import "fmt"

// Framing markers and packet types. Every packet on the wire is
// STX, type, two header bytes, payload, ETX.
const (
	STX byte = 0x02
	ETX byte = 0x03

	// PktAutoID both requests identification (host to device, empty body
	// plus the 0x50 0x50 header) and carries the response (device to host,
	// five payload bytes of which the first two name the model).
	PktAutoID byte = 0x42

	// PktCells carries encoded braille cell data to the display.
	PktCells byte = 0x43

	// PktKeyState reports the complete set of currently held keys.
	PktKeyState byte = 0x4B

	// PktCellAck acknowledges a cell write.
	PktCellAck byte = 0x4C
)

const (
	// lengthBase offsets each header nibble; fillByte pads dummy and
	// vertical cell slots and is the low-nibble carrier for cell data.
	lengthBase byte = 0x50
	fillByte   byte = 0x30

	// fixedPayloadLen applies to packet types without a meaningful length
	// header, identification responses among them.
	fixedPayloadLen = 5
)

// Variant selects the key bitstream layout. Desk models (EL series) speak
// VariantA; handheld models (Trio, Live series) speak VariantB.
type Variant uint8

const (
	VariantA Variant = iota
	VariantB
)

func (v Variant) String() string {
	switch v {
	case VariantA:
		return "A"
	case VariantB:
		return "B"
	default:
		return fmt.Sprintf("Variant(%d)", uint8(v))
	}
}

// Packet is one extracted frame. Payload excludes the two header bytes;
// for identification responses the model code pair sits at Payload[0] and
// Payload[1].
type Packet struct {
	Type    byte
	Payload []byte
}

// variableLength reports whether typ declares its payload length in the
// two header bytes. All other types carry a fixed five-byte payload.
func variableLength(typ byte) bool {
	switch typ {
	case PktCells, PktKeyState, PktCellAck:
		return true
	}
	return false
}

// headerLength decodes the two header bytes of a variable-length packet.
func headerLength(h1, h2 byte) (int, error) {
	hi := int(h1) - int(lengthBase)
	lo := int(h2) - int(lengthBase)
	if hi < 0 || hi > 0x0F || lo < 0 || lo > 0x0F {
		return 0, &FramingError{Reason: "length header out of range", Got: h1}
	}
	return 2 * (hi<<4 | lo), nil
}

// AppendPacket appends a complete frame of the given type and body to dst.
func AppendPacket(dst []byte, typ byte, body []byte) []byte {
	dst = append(dst, STX, typ)
	dst = append(dst, body...)
	return append(dst, ETX)
}

// AutoIDRequest returns the identification request frame. The body is the
// header pair alone; the device answers with a five-byte PktAutoID payload.
func AutoIDRequest() []byte {
	return AppendPacket(nil, PktAutoID, []byte{lengthBase, lengthBase})
}
