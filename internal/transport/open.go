package transport

import "fmt"

// Open connects to a candidate and wraps the port in a supervised
// channel. baud is the initial line speed for transports that have one.
func Open(c Candidate, baud int) (*Channel, error) {
	var (
		port Port
		err  error
	)
	switch c.Kind {
	case KindSerial:
		port, err = openSerialPort(c.Path, baud)
	case KindHID:
		port, err = openHIDPort(c.Path)
	case KindUSB:
		port, err = openUSBPort(baud)
	default:
		err = fmt.Errorf("transport: unknown transport kind %q", c.Kind)
	}
	if err != nil {
		return nil, err
	}
	return NewChannel(port, c.String()), nil
}

// ListCandidates enumerates every attachment point worth probing, in
// probe order: the dedicated USB product first, then HID devices, then
// serial ports.
func ListCandidates() []Candidate {
	var out []Candidate
	if c, ok := usbCandidate(); ok {
		out = append(out, c)
	}
	out = append(out, listHIDCandidates()...)
	out = append(out, listSerialCandidates()...)
	return out
}
