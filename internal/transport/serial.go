package transport

import (
	"fmt"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"

	"github.com/braillekit/braillex/internal/monitoring"
)

// serialPort adapts a go.bug.st port, remembering the mode so the line
// speed can change without reopening.
type serialPort struct {
	serial.Port
	mode serial.Mode
}

func (p *serialPort) SetBaudRate(rate int) error {
	p.mode.BaudRate = rate
	if err := p.Port.SetMode(&p.mode); err != nil {
		return fmt.Errorf("transport: set baud rate %d: %w", rate, err)
	}
	return nil
}

func openSerialPort(path string, baud int) (Port, error) {
	mode := serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(path, &mode)
	if err != nil {
		return nil, fmt.Errorf("transport: open serial port %s: %w", path, err)
	}
	return &serialPort{Port: port, mode: mode}, nil
}

// listSerialCandidates enumerates serial ports, USB-backed bridges ahead
// of raw UARTs since displays always arrive through a bridge.
func listSerialCandidates() []Candidate {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		monitoring.Debugf("transport: serial enumeration failed: %v", err)
		return nil
	}
	var usb, plain []Candidate
	for _, p := range ports {
		c := Candidate{Kind: KindSerial, Path: p.Name}
		if p.IsUSB {
			c.VID, c.PID, c.Product = p.VID, p.PID, p.Product
			usb = append(usb, c)
			continue
		}
		plain = append(plain, c)
	}
	return append(usb, plain...)
}
