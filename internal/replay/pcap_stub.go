//go:build !pcap
// +build !pcap

package replay

import "fmt"

// OpenPCAP is a stub when capture support is compiled out.
// Build with -tags=pcap to enable capture file replay.
func OpenPCAP(path string, udpPort int) (Source, error) {
	return nil, fmt.Errorf("PCAP support not enabled: rebuild with -tags=pcap to replay capture files")
}
