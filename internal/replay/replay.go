// Package replay feeds captured display traffic back through the frame
// scanner and packet decoders, for offline protocol debugging. The decode
// loop has no capture-file dependencies; OpenPCAP, which reads capture
// files, is compiled in only under the pcap build tag.
package replay

import (
	"context"
	"errors"
	"time"

	"github.com/braillekit/braillex/internal/braillex"
	"github.com/braillekit/braillex/internal/braillex/wire"
	"github.com/braillekit/braillex/internal/monitoring"
)

// Packet is one frame recovered from the capture, decoded as far as the
// known model allows.
type Packet struct {
	Seq       int
	Timestamp time.Time
	Frame     wire.Packet

	// Keys holds the decoded held-key set for key state frames and Cells
	// the recovered content for cell data frames. Both stay nil until a
	// model is known.
	Keys  []int
	Cells []byte
}

// Summary totals one replay pass.
type Summary struct {
	Chunks        int
	Bytes         int
	Packets       int
	IdentPackets  int
	KeyPackets    int
	CellPackets   int
	AckPackets    int
	OtherPackets  int
	FramingErrors int

	// Residue counts bytes still unframed when the capture ended,
	// usually a truncated final frame.
	Residue int

	// Model names the decode geometry, whether passed in or adopted from
	// an identification response in the capture.
	Model string

	First time.Time
	Last  time.Time
}

// Duration spans the capture timestamps seen during the pass.
func (s Summary) Duration() time.Duration {
	if s.First.IsZero() || s.Last.IsZero() {
		return 0
	}
	return s.Last.Sub(s.First)
}

// Run scans every chunk from src and hands each recovered frame to emit,
// which may be nil. model selects the decode geometry; when nil, the
// first identification response in the capture picks it. Run consumes src
// to the end of the capture or the first source error.
func Run(ctx context.Context, src Source, model *braillex.DeviceModel, emit func(Packet)) (Summary, error) {
	var (
		sum Summary
		sc  wire.Scanner
	)
	if model != nil {
		sum.Model = model.Name
	}

	for {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		chunk, err := src.Next()
		if err != nil {
			return sum, err
		}
		if chunk == nil {
			sum.Residue = sc.Buffered()
			return sum, nil
		}

		sum.Chunks++
		sum.Bytes += len(chunk.Data)
		if !chunk.Timestamp.IsZero() {
			if sum.First.IsZero() {
				sum.First = chunk.Timestamp
			}
			sum.Last = chunk.Timestamp
		}

		sc.Feed(chunk.Data)
		for {
			frame, err := sc.Next()
			if errors.Is(err, wire.ErrIncomplete) {
				break
			}
			if err != nil {
				sum.FramingErrors++
				monitoring.Debugf("replay: chunk %d: %v", sum.Chunks, err)
				continue
			}

			sum.Packets++
			p := Packet{Seq: sum.Packets, Timestamp: chunk.Timestamp, Frame: frame}

			switch frame.Type {
			case wire.PktAutoID:
				sum.IdentPackets++
				if model == nil && len(frame.Payload) >= 2 {
					m, err := braillex.Identify([2]byte{frame.Payload[0], frame.Payload[1]})
					if err != nil {
						monitoring.Debugf("replay: %v", err)
					} else {
						model = &m
						sum.Model = m.Name
					}
				}
			case wire.PktKeyState:
				sum.KeyPackets++
				if model != nil {
					if model.Protocol == wire.VariantB {
						p.Keys = wire.DecodeKeysTrio(frame)
					} else {
						p.Keys = wire.DecodeKeysA(frame.Payload, 0, model.VerticalCells)
					}
				}
			case wire.PktCells:
				sum.CellPackets++
				if model != nil {
					cells, err := model.DecodeCells(frame)
					if err != nil {
						monitoring.Debugf("replay: cell decode: %v", err)
					} else {
						p.Cells = cells
					}
				}
			case wire.PktCellAck:
				sum.AckPackets++
			default:
				sum.OtherPackets++
			}

			if emit != nil {
				emit(p)
			}
		}
	}
}
