package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/gousb"

	"github.com/braillekit/braillex/internal/monitoring"
)

// Displays with the classic USB interface show up as an FTDI bridge with
// the vendor's dedicated product ID, driven here over raw bulk endpoints.
const (
	ftdiVendorID  = 0x0403
	ftdiProductID = 0xF208

	ftdiEndpointIn  = 1 // 0x81
	ftdiEndpointOut = 2 // 0x02

	// FTDI vendor requests.
	ftdiReqReset           = 0
	ftdiReqSetBaudRate     = 3
	ftdiReqSetData         = 4
	ftdiReqSetLatencyTimer = 9

	ftdiData8N1       = 0x0008
	ftdiLatencyMillis = 16

	// Host-to-device vendor request addressed to the device.
	ftdiRequestType = 0x40
)

// ftdiBaudDivisor encodes a line speed as an FT232 clock divisor. The two
// rates the displays use have well-known encodings; anything else gets
// the plain integer divisor of the 3 MHz reference.
func ftdiBaudDivisor(baud int) uint16 {
	switch baud {
	case 57600:
		return 0xC034 // 52 + 1/8
	case 115200:
		return 0x001A // 26
	}
	return uint16(3000000 / baud)
}

// usbPort drives the FTDI bridge directly. Each bulk IN transfer begins
// with two modem status bytes, which are stripped; transfers carrying
// only status count as silence.
type usbPort struct {
	ctx     *gousb.Context
	dev     *gousb.Device
	release func()
	in      *gousb.InEndpoint
	out     *gousb.OutEndpoint

	mu      sync.Mutex
	timeout time.Duration
	cancel  context.CancelFunc
	closed  bool
}

func openUSBPort(baud int) (Port, error) {
	ctx := gousb.NewContext()
	dev, err := ctx.OpenDeviceWithVIDPID(gousb.ID(ftdiVendorID), gousb.ID(ftdiProductID))
	if err != nil {
		ctx.Close()
		return nil, fmt.Errorf("transport: open usb device: %w", err)
	}
	if dev == nil {
		ctx.Close()
		return nil, fmt.Errorf("transport: usb device %04x:%04x not present", ftdiVendorID, ftdiProductID)
	}
	if err := dev.SetAutoDetach(true); err != nil {
		monitoring.Debugf("transport: usb auto-detach: %v", err)
	}

	cfg, err := dev.Config(1)
	if err != nil {
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("transport: claim usb configuration: %w", err)
	}
	intf, err := cfg.Interface(0, 0)
	if err != nil {
		cfg.Close()
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("transport: claim usb interface: %w", err)
	}
	release := func() {
		intf.Close()
		cfg.Close()
	}

	in, err := intf.InEndpoint(ftdiEndpointIn)
	if err == nil {
		var out *gousb.OutEndpoint
		out, err = intf.OutEndpoint(ftdiEndpointOut)
		if err == nil {
			p := &usbPort{ctx: ctx, dev: dev, release: release, in: in, out: out}
			if err = p.initBridge(baud); err == nil {
				return p, nil
			}
		}
	}
	release()
	dev.Close()
	ctx.Close()
	return nil, fmt.Errorf("transport: usb endpoints: %w", err)
}

// initBridge resets the FTDI and sets framing, latency, and line speed.
// The latency timer bounds how long the chip sits on partial data before
// flushing a status-only transfer.
func (p *usbPort) initBridge(baud int) error {
	steps := []struct {
		req  uint8
		val  uint16
		name string
	}{
		{ftdiReqReset, 0, "reset"},
		{ftdiReqSetData, ftdiData8N1, "set framing"},
		{ftdiReqSetLatencyTimer, ftdiLatencyMillis, "set latency"},
		{ftdiReqSetBaudRate, ftdiBaudDivisor(baud), "set baud rate"},
	}
	for _, s := range steps {
		if _, err := p.dev.Control(uint8(ftdiRequestType), s.req, s.val, 0, nil); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}

func (p *usbPort) SetBaudRate(rate int) error {
	if _, err := p.dev.Control(uint8(ftdiRequestType), ftdiReqSetBaudRate, ftdiBaudDivisor(rate), 0, nil); err != nil {
		return fmt.Errorf("transport: set usb baud rate %d: %w", rate, err)
	}
	return nil
}

func (p *usbPort) SetReadTimeout(d time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timeout = d
	return nil
}

func (p *usbPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	timeout := p.timeout
	p.mu.Unlock()

	deadline := time.Now().Add(timeout)
	scratch := make([]byte, 2+len(b))
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return 0, nil
		}

		rctx, cancel := context.WithTimeout(context.Background(), remaining)
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			cancel()
			return 0, ErrClosed
		}
		p.cancel = cancel
		p.mu.Unlock()

		n, err := p.in.ReadContext(rctx, scratch)

		p.mu.Lock()
		p.cancel = nil
		closed := p.closed
		p.mu.Unlock()
		cancel()

		switch {
		case closed:
			return 0, ErrClosed
		case errors.Is(err, context.DeadlineExceeded), errors.Is(err, gousb.TransferCancelled):
			return 0, nil
		case err != nil:
			return 0, fmt.Errorf("transport: usb bulk read: %w", err)
		}
		if n > 2 {
			return copy(b, scratch[2:n]), nil
		}
		// Status-only transfer; the chip had no data yet.
	}
}

func (p *usbPort) Write(b []byte) (int, error) {
	n, err := p.out.Write(b)
	if err != nil {
		return n, fmt.Errorf("transport: usb bulk write: %w", err)
	}
	return n, nil
}

// Close cancels any pending bulk read before releasing the interface, so
// the reader goroutine blocked on it returns promptly.
func (p *usbPort) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	cancel := p.cancel
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.release()
	err := p.dev.Close()
	if cerr := p.ctx.Close(); err == nil {
		err = cerr
	}
	return err
}

// usbCandidate reports whether the dedicated USB product is attached,
// without claiming it.
func usbCandidate() (Candidate, bool) {
	ctx := gousb.NewContext()
	defer ctx.Close()

	found := false
	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if uint16(desc.Vendor) == ftdiVendorID && uint16(desc.Product) == ftdiProductID {
			found = true
		}
		return false
	})
	for _, d := range devs {
		d.Close()
	}
	if err != nil {
		monitoring.Debugf("transport: usb enumeration: %v", err)
	}
	if !found {
		return Candidate{}, false
	}
	return Candidate{
		Kind: KindUSB,
		VID:  fmt.Sprintf("%04x", ftdiVendorID),
		PID:  fmt.Sprintf("%04x", ftdiProductID),
	}, true
}
