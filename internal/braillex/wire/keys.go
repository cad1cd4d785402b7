package wire

import (
	"fmt"
	"sort"
)

// Key index layout. Variant A packs held keys as bit pairs walking up an
// index space: the first byte of each pair carries indices n+4..n+7 in its
// low nibble, the second carries n+0..n+3, then n advances by 8. Indices
// past the front-key block are routing keys, one per cell.
const (
	// RoutingKeyBase is the first index of the routing key block.
	RoutingKeyBase = 32

	// verticalShiftThreshold marks where the vertical-cell offset starts
	// applying on displays with a vertical column. Pairs based beyond it
	// are shifted down so horizontal routing keys keep standard indices.
	verticalShiftThreshold = 26
)

// DecodeKeysA extracts the held key index set from a variant A key state
// payload. start is the byte offset of the first key pair; voffset is the
// display's vertical cell count, shifting indices decoded past the
// front-key block. The result is sorted ascending, so equal key sets
// compare equal regardless of wire bit order.
func DecodeKeysA(payload []byte, start, voffset int) []int {
	var keys []int
	shift := 0
	n := 0
	for i := start; i+1 < len(payload); i += 2 {
		if n > verticalShiftThreshold {
			shift = voffset
		}
		a := payload[i] & 0x0F
		b := payload[i+1] & 0x0F
		for bit := 0; bit < 4; bit++ {
			if b&(1<<bit) != 0 {
				keys = append(keys, n+bit-shift)
			}
			if a&(1<<bit) != 0 {
				keys = append(keys, n+4+bit-shift)
			}
		}
		n += 8
	}
	sort.Ints(keys)
	return keys
}

// DecodeKeysTrio extracts the held key index set from a variant B key
// state packet. Only key state packets decode; anything else returns nil.
// Each payload byte carries four indices in its low nibble, most
// significant bit first.
func DecodeKeysTrio(p Packet) []int {
	if p.Type != PktKeyState {
		return nil
	}
	var keys []int
	base := 0
	for _, c := range p.Payload {
		a := c & 0x0F
		if a&1 != 0 {
			keys = append(keys, base+3)
		}
		if a&2 != 0 {
			keys = append(keys, base+2)
		}
		if a&4 != 0 {
			keys = append(keys, base+1)
		}
		if a&8 != 0 {
			keys = append(keys, base)
		}
		base += 4
	}
	sort.Ints(keys)
	return keys
}

// KeyName maps a decoded key index to its gesture name. Front keys occupy
// 1..16, with both hardware revisions of the thumb key pairs mapping to
// the same four names. Indices from RoutingKeyBase up name routing keys by
// 1-based cell position. Unassigned indices report ok false.
func KeyName(i int) (string, bool) {
	switch i {
	case 1:
		return "left", true
	case 2:
		return "left2", true
	case 3:
		return "up", true
	case 4:
		return "up2", true
	case 5:
		return "right", true
	case 6:
		return "right2", true
	case 7:
		return "dn", true
	case 8:
		return "dn2", true
	case 9, 11:
		return "l1", true
	case 10, 12:
		return "l2", true
	case 13, 15:
		return "r1", true
	case 14, 16:
		return "r2", true
	}
	if i >= RoutingKeyBase {
		return fmt.Sprintf("route%d", i-RoutingKeyBase+1), true
	}
	return "", false
}

// JoinKeys combines the names of a released chord into a single gesture
// label. Chords of one or two keys always combine; three keys combine only
// when a duplicated name identifies the pair. Anything else is not a
// recognized chord.
func JoinKeys(names []string) (string, bool) {
	switch len(names) {
	case 1:
		return names[0], true
	case 2:
		return names[1] + "," + names[0], true
	case 3:
		if names[0] == names[1] {
			return names[0] + "," + names[2], true
		}
		if names[0] == names[2] {
			return names[0] + "," + names[1], true
		}
	}
	return "", false
}
