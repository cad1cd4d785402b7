package wire

// Device-side frame builders. The daemon never sends these; display
// emulation and capture tooling do.

// AutoIDResponseFrame frames the identification answer for a model code
// pair, five payload bytes led by the pair.
func AutoIDResponseFrame(id [2]byte) []byte {
	return AppendPacket(nil, PktAutoID, []byte{lengthBase, lengthBase, id[0], id[1], 0x00, 0x00, 0x00})
}

// KeyStateFrameA frames a variant A key state packet reporting the given
// raw key indices as held. One zero pair still travels when no keys are
// down, which is how real hardware reports release.
func KeyStateFrameA(keys ...int) []byte {
	pairs := 1
	for _, k := range keys {
		if p := k/8 + 1; p > pairs {
			pairs = p
		}
	}
	data := make([]byte, 2*pairs)
	for _, k := range keys {
		pair, off := k/8, k%8
		if off < 4 {
			data[2*pair+1] |= 1 << off
		} else {
			data[2*pair] |= 1 << (off - 4)
		}
	}
	body := append([]byte{lengthBase | byte(pairs>>4), lengthBase | byte(pairs&0x0F)}, data...)
	return AppendPacket(nil, PktKeyState, body)
}

// KeyStateFrameTrio frames a variant B key state packet. Each payload
// byte covers four indices, most significant bit first.
func KeyStateFrameTrio(keys ...int) []byte {
	groups := 1
	for _, k := range keys {
		if g := k/4 + 1; g > groups {
			groups = g
		}
	}
	data := make([]byte, groups)
	for _, k := range keys {
		data[k/4] |= 1 << (3 - k%4)
	}
	// The length header counts byte pairs, so the payload is padded even.
	if len(data)%2 == 1 {
		data = append(data, 0)
	}
	d2 := len(data) / 2
	body := append([]byte{lengthBase | byte(d2>>4), lengthBase | byte(d2&0x0F)}, data...)
	return AppendPacket(nil, PktKeyState, body)
}
