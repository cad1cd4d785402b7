//go:build pcap
// +build pcap

package replay

import (
	"fmt"
	"io"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"github.com/braillekit/braillex/internal/monitoring"
)

// pcapSource adapts an offline capture handle to the Source interface.
type pcapSource struct {
	handle *pcap.Handle
	src    *gopacket.PacketSource
}

// OpenPCAP opens a capture file for replay. udpPort narrows the capture to
// traffic a serial-over-UDP bridge forwarded on that port; zero takes
// every packet. Only available when building with the pcap tag.
func OpenPCAP(path string, udpPort int) (Source, error) {
	handle, err := pcap.OpenOffline(path)
	if err != nil {
		return nil, fmt.Errorf("replay: open capture %s: %w", path, err)
	}
	if udpPort > 0 {
		filter := fmt.Sprintf("udp port %d", udpPort)
		if err := handle.SetBPFFilter(filter); err != nil {
			handle.Close()
			return nil, fmt.Errorf("replay: set BPF filter %q: %w", filter, err)
		}
		monitoring.Logf("replay: BPF filter set: %s", filter)
	}
	return &pcapSource{
		handle: handle,
		src:    gopacket.NewPacketSource(handle, handle.LinkType()),
	}, nil
}

// Next returns the next captured chunk. Bridged captures carry the device
// byte stream as UDP payload; raw captures fall back to the deepest
// payload gopacket exposes. Empty packets are skipped.
func (s *pcapSource) Next() (*Chunk, error) {
	for {
		packet, err := s.src.NextPacket()
		if err == io.EOF {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("replay: read capture: %w", err)
		}

		data := payloadOf(packet)
		if len(data) == 0 {
			continue
		}
		return &Chunk{Data: data, Timestamp: packet.Metadata().Timestamp}, nil
	}
}

func payloadOf(packet gopacket.Packet) []byte {
	if udpLayer := packet.Layer(layers.LayerTypeUDP); udpLayer != nil {
		if udp, ok := udpLayer.(*layers.UDP); ok {
			return udp.Payload
		}
	}
	if app := packet.ApplicationLayer(); app != nil {
		return app.Payload()
	}
	return packet.Data()
}

func (s *pcapSource) Close() error {
	s.handle.Close()
	return nil
}
