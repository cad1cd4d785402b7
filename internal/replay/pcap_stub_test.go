//go:build !pcap
// +build !pcap

package replay

import (
	"strings"
	"testing"
)

func TestOpenPCAP_Stub(t *testing.T) {
	src, err := OpenPCAP("capture.pcap", 3333)
	if err == nil {
		t.Fatal("expected error from stub implementation")
	}
	if src != nil {
		t.Errorf("source = %v, want nil", src)
	}
	if !strings.Contains(err.Error(), "PCAP support not enabled") {
		t.Errorf("error = %q, want it to name the missing build tag", err)
	}
}
