package transport

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sstallion/go-hid"

	"github.com/braillekit/braillex/internal/monitoring"
)

// papenmeierVendorID is the vendor's USB HID identity.
const papenmeierVendorID = 0x0904

var hidInitOnce sync.Once

func hidInit() {
	hidInitOnce.Do(func() {
		if err := hid.Init(); err != nil {
			monitoring.Logf("transport: hid init: %v", err)
		}
	})
}

// hidPort adapts a raw HID device. Output reports are prefixed with the
// zero report ID; input reports arrive unnumbered.
type hidPort struct {
	dev *hid.Device

	mu      sync.Mutex
	timeout time.Duration
}

func openHIDPort(path string) (Port, error) {
	hidInit()
	dev, err := hid.OpenPath(path)
	if err != nil {
		return nil, fmt.Errorf("transport: open hid device %s: %w", path, err)
	}
	return &hidPort{dev: dev}, nil
}

func (p *hidPort) SetReadTimeout(d time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timeout = d
	return nil
}

func (p *hidPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	d := p.timeout
	p.mu.Unlock()
	if d < 0 {
		d = 0
	}
	for {
		n, err := p.dev.ReadWithTimeout(b, d)
		if err != nil {
			// hidapi surfaces EINTR from the blocking read; retry.
			if strings.Contains(err.Error(), "Interrupted system call") {
				continue
			}
			return n, fmt.Errorf("transport: hid read: %w", err)
		}
		return n, nil
	}
}

func (p *hidPort) Write(b []byte) (int, error) {
	buf := make([]byte, len(b)+1)
	copy(buf[1:], b)
	n, err := p.dev.Write(buf)
	if err != nil {
		return 0, fmt.Errorf("transport: hid write: %w", err)
	}
	if n <= 0 {
		return 0, nil
	}
	// Report the payload bytes accepted, excluding the report ID.
	if n > len(b) {
		n = len(b) + 1
	}
	return n - 1, nil
}

func (p *hidPort) Close() error {
	return p.dev.Close()
}

func listHIDCandidates() []Candidate {
	hidInit()
	var out []Candidate
	err := hid.Enumerate(papenmeierVendorID, hid.ProductIDAny, func(info *hid.DeviceInfo) error {
		out = append(out, Candidate{
			Kind:    KindHID,
			Path:    info.Path,
			VID:     fmt.Sprintf("%04x", info.VendorID),
			PID:     fmt.Sprintf("%04x", info.ProductID),
			Product: info.ProductStr,
		})
		return nil
	})
	if err != nil {
		monitoring.Debugf("transport: hid enumeration: %v", err)
	}
	return out
}
