//go:build pcap
// +build pcap

// Command pcap-replay feeds a capture of display traffic back through the
// frame scanner and packet decoders, for offline protocol debugging.
// Captures come from a serial-over-UDP bridge or any tap that preserves
// the raw byte stream.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/braillekit/braillex/internal/braillex"
	"github.com/braillekit/braillex/internal/braillex/wire"
	"github.com/braillekit/braillex/internal/monitoring"
	"github.com/braillekit/braillex/internal/replay"
)

var (
	pcapFile  = flag.String("pcap", "", "Path to capture file (required)")
	udpPort   = flag.Int("port", 0, "UDP port the serial bridge forwarded on (0 reads every packet)")
	modelName = flag.String("model", "", "Decode as this model (default: adopt from the capture's identification response)")
	verbose   = flag.Bool("v", false, "Print every recovered frame")
	debugMode = flag.Bool("debug", false, "Log scanner-level diagnostics")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Replays captured BRAILLEX traffic through the protocol decoders.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -pcap capture.pcap -port 3333 -v\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -pcap capture.pcap -model \"EL 80c\"\n", os.Args[0])
	}
	flag.Parse()

	if *pcapFile == "" {
		fmt.Fprintln(os.Stderr, "Error: capture file is required")
		flag.Usage()
		os.Exit(1)
	}
	if _, err := os.Stat(*pcapFile); os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Error: capture file not found: %s\n", *pcapFile)
		os.Exit(1)
	}

	monitoring.SetDebug(*debugMode)

	var model *braillex.DeviceModel
	if *modelName != "" {
		m, ok := findModel(*modelName)
		if !ok {
			log.Fatalf("unknown model %q (brlprobe -models lists the catalog)", *modelName)
		}
		model = &m
	}

	src, err := replay.OpenPCAP(*pcapFile, *udpPort)
	if err != nil {
		log.Fatalf("failed to open capture: %v", err)
	}
	defer src.Close()

	var emit func(replay.Packet)
	if *verbose {
		emit = printPacket
	}

	sum, err := replay.Run(context.Background(), src, model, emit)
	if err != nil {
		log.Fatalf("replay failed: %v", err)
	}

	printSummary(sum)
}

func findModel(name string) (braillex.DeviceModel, bool) {
	for _, m := range braillex.Models() {
		if strings.EqualFold(m.Name, name) {
			return m, true
		}
	}
	return braillex.DeviceModel{}, false
}

func printPacket(p replay.Packet) {
	line := fmt.Sprintf("#%04d type=0x%02X len=%d", p.Seq, p.Frame.Type, len(p.Frame.Payload))
	if !p.Timestamp.IsZero() {
		line = p.Timestamp.Format("15:04:05.000") + " " + line
	}

	switch p.Frame.Type {
	case wire.PktKeyState:
		names := make([]string, 0, len(p.Keys))
		for _, k := range p.Keys {
			if n, ok := wire.KeyName(k); ok {
				names = append(names, n)
			}
		}
		if len(p.Keys) == 0 {
			line += " keys released"
		} else {
			line += fmt.Sprintf(" keys=%v (%s)", p.Keys, strings.Join(names, ","))
		}
	case wire.PktCells:
		if p.Cells != nil {
			preview := p.Cells
			if len(preview) > 8 {
				preview = preview[:8]
			}
			line += fmt.Sprintf(" cells=%d [% X ...]", len(p.Cells), preview)
		}
	case wire.PktAutoID:
		if len(p.Frame.Payload) >= 2 {
			line += fmt.Sprintf(" ident=%02X%02X", p.Frame.Payload[0], p.Frame.Payload[1])
		}
	}
	fmt.Println(line)
}

func printSummary(sum replay.Summary) {
	fmt.Println("\n========== Capture Replay Summary ==========")
	fmt.Printf("Chunks: %d (%d bytes)\n", sum.Chunks, sum.Bytes)
	if d := sum.Duration(); d > 0 {
		fmt.Printf("Duration: %.1f seconds\n", d.Seconds())
	}
	if sum.Model != "" {
		fmt.Printf("Model: %s\n", sum.Model)
	}
	fmt.Printf("Frames: %d\n", sum.Packets)
	fmt.Printf("  identification: %d\n", sum.IdentPackets)
	fmt.Printf("  key state:      %d\n", sum.KeyPackets)
	fmt.Printf("  cell data:      %d\n", sum.CellPackets)
	fmt.Printf("  cell acks:      %d\n", sum.AckPackets)
	fmt.Printf("  other:          %d\n", sum.OtherPackets)
	fmt.Printf("Framing errors: %d\n", sum.FramingErrors)
	if sum.Residue > 0 {
		fmt.Printf("Trailing residue: %d bytes\n", sum.Residue)
	}
	fmt.Println("=============================================")
}
