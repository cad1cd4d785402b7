// Package braillex drives Papenmeier BRAILLEX displays: discovering the
// attached model across transports, pushing cell content, and turning key
// traffic into gesture events.
package braillex

import (
	"fmt"

	"github.com/braillekit/braillex/internal/braillex/wire"
)

// Line speeds. Desk models identify at the default rate; the handheld
// family only answers at the faster one, which probing falls back to.
const (
	DefaultBaudRate = 57600
	TrioBaudRate    = 115200
)

// DeviceModel describes one display's geometry and protocol generation.
// LeftKeys and RightKeys count the key modules flanking the cell row;
// their slots in the cell stream are stuffed with filler. VerticalCells
// counts the side column present only on the 2D models.
type DeviceModel struct {
	ID            [2]byte
	Name          string
	Cells         int
	VerticalCells int
	LeftKeys      int
	RightKeys     int
	Protocol      wire.Variant
}

func (m DeviceModel) String() string {
	return fmt.Sprintf("%s (%d cells, protocol %s)", m.Name, m.Cells, m.Protocol)
}

// EncodeCells frames cell content for this display's geometry. cells must
// hold exactly one dot byte per horizontal cell.
func (m DeviceModel) EncodeCells(cells []byte) []byte {
	return wire.EncodeCells(cells, m.VerticalCells, m.LeftKeys, m.RightKeys)
}

// DecodeCells recovers cell content from a captured cell data packet
// addressed to this display.
func (m DeviceModel) DecodeCells(p wire.Packet) ([]byte, error) {
	return wire.DecodeCells(p, m.Cells, m.VerticalCells, m.LeftKeys, m.RightKeys)
}

// catalog maps the identification code pair every supported model answers
// with. Desk models carry one key module per side; handhelds carry none.
var catalog = map[[2]byte]DeviceModel{
	{0x35, 0x35}: {Name: "EL 40s", Cells: 40, LeftKeys: 1, RightKeys: 1, Protocol: wire.VariantA},
	{0x35, 0x37}: {Name: "EL 66s", Cells: 66, LeftKeys: 1, RightKeys: 1, Protocol: wire.VariantA},
	{0x35, 0x38}: {Name: "EL 80s", Cells: 80, LeftKeys: 1, RightKeys: 1, Protocol: wire.VariantA},
	{0x35, 0x39}: {Name: "Trio", Cells: 40, Protocol: wire.VariantB},
	{0x35, 0x3A}: {Name: "EL 70s", Cells: 70, LeftKeys: 1, RightKeys: 1, Protocol: wire.VariantA},
	{0x35, 0x3B}: {Name: "EL 2D80s", Cells: 80, VerticalCells: 20, LeftKeys: 1, RightKeys: 1, Protocol: wire.VariantA},
	{0x35, 0x3E}: {Name: "EL 20c", Cells: 20, LeftKeys: 1, RightKeys: 1, Protocol: wire.VariantA},
	{0x35, 0x3F}: {Name: "EL 40c", Cells: 40, LeftKeys: 1, RightKeys: 1, Protocol: wire.VariantA},
	{0x36, 0x30}: {Name: "EL 60c", Cells: 60, LeftKeys: 1, RightKeys: 1, Protocol: wire.VariantA},
	{0x36, 0x31}: {Name: "EL 80c", Cells: 80, LeftKeys: 1, RightKeys: 1, Protocol: wire.VariantA},
	{0x36, 0x32}: {Name: "Live", Cells: 40, Protocol: wire.VariantB},
	{0x36, 0x33}: {Name: "Live+", Cells: 40, Protocol: wire.VariantB},
	{0x36, 0x34}: {Name: "Live 20", Cells: 20, Protocol: wire.VariantB},
}

// Identify resolves an identification code pair to its model. Unknown
// pairs are a ProtocolError; discovery skips the device rather than
// guessing geometry.
func Identify(id [2]byte) (DeviceModel, error) {
	m, ok := catalog[id]
	if !ok {
		return DeviceModel{}, &ProtocolError{
			Reason: fmt.Sprintf("unknown identification code 0x%02X 0x%02X", id[0], id[1]),
		}
	}
	m.ID = id
	return m, nil
}

// Models lists every supported model, for the probe tool's catalog output.
func Models() []DeviceModel {
	out := make([]DeviceModel, 0, len(catalog))
	for id, m := range catalog {
		m.ID = id
		out = append(out, m)
	}
	return out
}
