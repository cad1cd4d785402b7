package replay

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/braillekit/braillex/internal/braillex"
	"github.com/braillekit/braillex/internal/braillex/wire"
)

func model(t *testing.T, id [2]byte) braillex.DeviceModel {
	t.Helper()
	m, err := braillex.Identify(id)
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	return m
}

func TestRun_EmptyCapture(t *testing.T) {
	t.Parallel()

	sum, err := Run(context.Background(), NewMockSource(), nil, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if diff := cmp.Diff(Summary{}, sum); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_AdoptsModelFromCapture(t *testing.T) {
	t.Parallel()

	m := model(t, [2]byte{0x36, 0x31})
	cells := make([]byte, m.Cells)
	for i := range cells {
		cells[i] = byte(i)
	}

	t0 := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	src := NewMockSource()
	src.Add(wire.AutoIDResponseFrame(m.ID), t0)
	src.Add(wire.KeyStateFrameA(11), t0.Add(20*time.Millisecond))
	src.Add(m.EncodeCells(cells), t0.Add(50*time.Millisecond))

	var got []Packet
	sum, err := Run(context.Background(), src, nil, func(p Packet) { got = append(got, p) })
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if sum.Chunks != 3 || sum.Packets != 3 {
		t.Errorf("Chunks=%d Packets=%d, want 3 and 3", sum.Chunks, sum.Packets)
	}
	if sum.IdentPackets != 1 || sum.KeyPackets != 1 || sum.CellPackets != 1 {
		t.Errorf("packet counts = %d ident, %d key, %d cell, want 1 each",
			sum.IdentPackets, sum.KeyPackets, sum.CellPackets)
	}
	if sum.Model != "EL 80c" {
		t.Errorf("Model = %q, want EL 80c", sum.Model)
	}
	if sum.FramingErrors != 0 || sum.Residue != 0 {
		t.Errorf("FramingErrors=%d Residue=%d, want 0 and 0", sum.FramingErrors, sum.Residue)
	}
	if sum.Duration() != 50*time.Millisecond {
		t.Errorf("Duration = %v, want 50ms", sum.Duration())
	}

	if len(got) != 3 {
		t.Fatalf("emitted %d packets, want 3", len(got))
	}
	for i, p := range got {
		if p.Seq != i+1 {
			t.Errorf("packet %d Seq = %d, want %d", i, p.Seq, i+1)
		}
	}
	if diff := cmp.Diff([]int{11}, got[1].Keys); diff != "" {
		t.Errorf("key decode mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(cells, got[2].Cells); diff != "" {
		t.Errorf("cell decode mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_ProvidedModel(t *testing.T) {
	t.Parallel()

	// The 2D model pads a vertical column; the round trip proves the
	// replay decoder strips it again.
	m := model(t, [2]byte{0x35, 0x3B})
	cells := make([]byte, m.Cells)
	for i := range cells {
		cells[i] = byte(i * 3)
	}

	src := NewMockSource()
	src.Add(m.EncodeCells(cells), time.Time{})

	var got []Packet
	sum, err := Run(context.Background(), src, &m, func(p Packet) { got = append(got, p) })
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Model != "EL 2D80s" {
		t.Errorf("Model = %q, want EL 2D80s", sum.Model)
	}
	if len(got) != 1 {
		t.Fatalf("emitted %d packets, want 1", len(got))
	}
	if diff := cmp.Diff(cells, got[0].Cells); diff != "" {
		t.Errorf("cell decode mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_TrioKeyDecode(t *testing.T) {
	t.Parallel()

	m := model(t, [2]byte{0x35, 0x39})
	src := NewMockSource()
	src.Add(wire.KeyStateFrameTrio(3), time.Time{})

	var got []Packet
	if _, err := Run(context.Background(), src, &m, func(p Packet) { got = append(got, p) }); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("emitted %d packets, want 1", len(got))
	}
	if diff := cmp.Diff([]int{3}, got[0].Keys); diff != "" {
		t.Errorf("key decode mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_FrameStraddlesChunks(t *testing.T) {
	t.Parallel()

	frame := wire.KeyStateFrameA(3)
	src := NewMockSource()
	src.Add(frame[:2], time.Time{})
	src.Add(frame[2:], time.Time{})

	sum, err := Run(context.Background(), src, nil, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Packets != 1 || sum.KeyPackets != 1 {
		t.Errorf("Packets=%d KeyPackets=%d, want 1 and 1", sum.Packets, sum.KeyPackets)
	}
	if sum.Residue != 0 {
		t.Errorf("Residue = %d, want 0", sum.Residue)
	}
}

func TestRun_RecoversAfterBadFrame(t *testing.T) {
	t.Parallel()

	src := NewMockSource()
	src.Add([]byte{0xFF, 0x10}, time.Time{})                   // line noise, no marker
	src.Add([]byte{0x02, 0x43, 0x20, 0x20, 0x03}, time.Time{}) // length header out of range
	src.Add(wire.KeyStateFrameA(5), time.Time{})

	sum, err := Run(context.Background(), src, nil, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.FramingErrors != 1 {
		t.Errorf("FramingErrors = %d, want 1", sum.FramingErrors)
	}
	if sum.Packets != 1 || sum.KeyPackets != 1 {
		t.Errorf("Packets=%d KeyPackets=%d, want 1 and 1", sum.Packets, sum.KeyPackets)
	}
}

func TestRun_TruncatedCaptureLeavesResidue(t *testing.T) {
	t.Parallel()

	frame := wire.KeyStateFrameA(3)
	src := NewMockSource()
	src.Add(frame, time.Time{})
	src.Add(frame[:3], time.Time{})

	sum, err := Run(context.Background(), src, nil, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Packets != 1 {
		t.Errorf("Packets = %d, want 1", sum.Packets)
	}
	if sum.Residue != 3 {
		t.Errorf("Residue = %d, want 3", sum.Residue)
	}
}

func TestRun_SourceError(t *testing.T) {
	t.Parallel()

	src := NewMockSource()
	src.Add([]byte{0xFF}, time.Time{})
	src.FailWith(io.ErrUnexpectedEOF)

	sum, err := Run(context.Background(), src, nil, nil)
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("Run error = %v, want ErrUnexpectedEOF", err)
	}
	if sum.Chunks != 1 {
		t.Errorf("Chunks = %d, want the partial pass preserved", sum.Chunks)
	}
}

func TestRun_ContextCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := NewMockSource()
	src.Add(wire.KeyStateFrameA(3), time.Time{})

	if _, err := Run(ctx, src, nil, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run error = %v, want context.Canceled", err)
	}
}
