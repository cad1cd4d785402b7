package wire

import (
	"fmt"
	"math/bits"
)

// Cell data layout. Each braille cell travels as two bytes: the cell's dot
// byte is bit-reversed, split into nibbles, and each nibble is carried in
// the low half of a 0x30-based byte. Slots for vertical cells (two bytes
// each) and for the key modules at either end of the display (four bytes
// each) are stuffed with the filler byte; the host never drives them.

// EncodeCells builds a complete cell data frame for a display with the
// given geometry. cells holds one dot byte per horizontal cell, dot 1 in
// bit 0 through dot 8 in bit 7. The length header counts cells, vertical
// cells once, and key modules twice.
func EncodeCells(cells []byte, vertical, leftKeys, rightKeys int) []byte {
	d2 := len(cells) + vertical + 2*leftKeys + 2*rightKeys

	body := make([]byte, 0, 2+2*vertical+4*leftKeys+2*len(cells)+4*rightKeys)
	body = append(body, lengthBase|byte(d2>>4), lengthBase|byte(d2&0x0F))
	for i := 0; i < 2*vertical; i++ {
		body = append(body, fillByte)
	}
	for i := 0; i < 4*leftKeys; i++ {
		body = append(body, fillByte)
	}
	for _, c := range cells {
		sw := bits.Reverse8(c)
		body = append(body, fillByte|sw>>4, fillByte|sw&0x0F)
	}
	for i := 0; i < 4*rightKeys; i++ {
		body = append(body, fillByte)
	}
	return AppendPacket(nil, PktCells, body)
}

// DecodeCells recovers the horizontal cell dot bytes from a cell data
// packet, validating the filler slots and nibble carriers along the way.
// It is the capture-replay counterpart of EncodeCells.
func DecodeCells(p Packet, numCells, vertical, leftKeys, rightKeys int) ([]byte, error) {
	if p.Type != PktCells {
		return nil, fmt.Errorf("wire: not a cell data packet (type 0x%02X)", p.Type)
	}
	want := 2*vertical + 4*leftKeys + 2*numCells + 4*rightKeys
	if len(p.Payload) != want {
		return nil, fmt.Errorf("wire: cell payload is %d bytes, want %d for %d cells", len(p.Payload), want, numCells)
	}

	skip := 2*vertical + 4*leftKeys
	for i := 0; i < skip; i++ {
		if p.Payload[i] != fillByte {
			return nil, fmt.Errorf("wire: filler slot %d holds 0x%02X", i, p.Payload[i])
		}
	}

	cells := make([]byte, numCells)
	for i := 0; i < numCells; i++ {
		hi := p.Payload[skip+2*i]
		lo := p.Payload[skip+2*i+1]
		if hi&0xF0 != fillByte || lo&0xF0 != fillByte {
			return nil, fmt.Errorf("wire: cell %d carrier bytes 0x%02X 0x%02X lack the 0x30 base", i, hi, lo)
		}
		cells[i] = bits.Reverse8(hi<<4 | lo&0x0F)
	}

	for i := skip + 2*numCells; i < want; i++ {
		if p.Payload[i] != fillByte {
			return nil, fmt.Errorf("wire: filler slot %d holds 0x%02X", i, p.Payload[i])
		}
	}
	return cells, nil
}
