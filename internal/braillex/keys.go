package braillex

import (
	"slices"
	"strings"

	"github.com/braillekit/braillex/internal/braillex/wire"
)

// KeyEvent is one gesture: a press extending the held set, a periodic
// repeat while keys stay held, or the release of a chord. Keys holds
// decoded indices; Names the recognized subset in index order. Label is
// the chord gesture on release (empty when the chord is unrecognized) and
// the joined names otherwise.
type KeyEvent struct {
	Keys    []int    `json:"keys"`
	Names   []string `json:"names,omitempty"`
	Label   string   `json:"label,omitempty"`
	Pressed bool     `json:"pressed"`
	Repeat  bool     `json:"repeat,omitempty"`
}

// Navigation keys auto-repeat while held; everything else fires once.
var repeatableKeys = map[string]bool{
	"up": true, "dn": true, "left": true, "right": true,
	"up2": true, "dn2": true, "left2": true, "right2": true,
}

func (d *Driver) handleKeyPacket(pkt wire.Packet) {
	d.mu.Lock()
	m := d.model
	bound := d.state == StateBound
	d.mu.Unlock()
	if !bound {
		return
	}

	var keys []int
	if m.Protocol == wire.VariantB {
		keys = wire.DecodeKeysTrio(pkt)
	} else {
		keys = wire.DecodeKeysA(pkt.Payload, 0, m.VerticalCells)
	}
	d.handleKeys(keys)
}

// handleKeys folds one held-set report into the chord state machine. A
// grown set is a press; the same non-empty set repeating is a hold; a
// shrunk set fires the chord once, then releases are ignored until the
// set grows again or empties. Runs only on the reader goroutine.
func (d *Driver) handleKeys(keys []int) {
	switch {
	case len(keys) > len(d.keysDown):
		d.repeatCount = 0
		d.ignoreReleases = false
		d.keysDown = keys
		names := keyNames(keys)
		d.emit(KeyEvent{
			Keys:    slices.Clone(keys),
			Names:   names,
			Label:   strings.Join(names, ","),
			Pressed: true,
		})

	case len(keys) > 0 && slices.Equal(keys, d.keysDown):
		d.repeatCount++
		if d.repeatCount < d.repeatInterval {
			return
		}
		d.repeatCount = 0
		var rep []string
		for _, n := range keyNames(keys) {
			if repeatableKeys[n] {
				rep = append(rep, n)
			}
		}
		if len(rep) == 0 {
			return
		}
		d.emit(KeyEvent{
			Keys:    slices.Clone(keys),
			Names:   rep,
			Label:   strings.Join(rep, ","),
			Pressed: true,
			Repeat:  true,
		})

	default:
		if !d.ignoreReleases && len(d.keysDown) > 0 {
			names := keyNames(d.keysDown)
			ev := KeyEvent{Keys: slices.Clone(d.keysDown), Names: names}
			if label, ok := wire.JoinKeys(names); ok {
				ev.Label = label
			}
			d.emit(ev)
			d.ignoreReleases = true
		}
		d.keysDown = keys
		d.repeatCount = 0
		if len(keys) == 0 {
			d.ignoreReleases = false
		}
	}
}

// keyNames resolves the recognized names for a sorted index set,
// preserving index order.
func keyNames(keys []int) []string {
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		if n, ok := wire.KeyName(k); ok {
			names = append(names, n)
		}
	}
	return names
}

func (d *Driver) emit(ev KeyEvent) {
	if d.handler == nil {
		return
	}
	d.handler(ev)
}
