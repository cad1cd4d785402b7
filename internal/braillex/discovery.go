package braillex

import (
	"fmt"
	"strings"
	"time"

	"github.com/braillekit/braillex/internal/braillex/wire"
	"github.com/braillekit/braillex/internal/monitoring"
	"github.com/braillekit/braillex/internal/transport"
)

// candidatesFor resolves a port spec to the candidates to probe. "auto"
// or an empty spec enumerates everything; "serial:PATH", "hid:PATH", and
// "usb" pin a transport; a bare path is serial.
func (d *Driver) candidatesFor(spec string) ([]transport.Candidate, error) {
	switch {
	case spec == "" || spec == "auto":
		return d.enumerate(), nil
	case strings.HasPrefix(spec, "serial:"):
		return []transport.Candidate{{Kind: transport.KindSerial, Path: strings.TrimPrefix(spec, "serial:")}}, nil
	case strings.HasPrefix(spec, "hid:"):
		return []transport.Candidate{{Kind: transport.KindHID, Path: strings.TrimPrefix(spec, "hid:")}}, nil
	case spec == "usb" || spec == "usb:":
		return []transport.Candidate{{Kind: transport.KindUSB}}, nil
	case strings.Contains(spec, ":") && !strings.HasPrefix(spec, "/") && !strings.HasPrefix(spec, `\\`):
		return nil, fmt.Errorf("braillex: unknown transport in port spec %q", spec)
	default:
		return []transport.Candidate{{Kind: transport.KindSerial, Path: spec}}, nil
	}
}

// discover probes candidates in order and binds the first display that
// identifies. Per-candidate failures stay at debug level; only total
// exhaustion is an error.
func (d *Driver) discover(spec string) error {
	candidates, err := d.candidatesFor(spec)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		return fmt.Errorf("%w: no candidate ports", ErrDeviceNotFound)
	}

	for _, cand := range candidates {
		ch, err := d.open(cand, DefaultBaudRate)
		if err != nil {
			monitoring.Debugf("braillex: %s: open: %v", cand, err)
			continue
		}
		if err := ch.Start(func(b byte) { d.dispatch(ch, b) }); err != nil {
			monitoring.Debugf("braillex: %s: start reader: %v", cand, err)
			ch.Close()
			continue
		}
		d.setState(StateIdentifying)
		model, ok := d.probe(ch)
		if !ok {
			d.setState(StateDiscovering)
			ch.Close()
			continue
		}
		d.bind(model, ch)
		monitoring.Logf("braillex: bound %s on %s", model, ch.Name())
		return nil
	}
	return fmt.Errorf("%w: probed %d candidates", ErrDeviceNotFound, len(candidates))
}

// probe runs one identification exchange. Desk models answer at the
// default rate; a silent port that can change line speed is retried at
// the handheld rate before giving up.
func (d *Driver) probe(ch *transport.Channel) (DeviceModel, bool) {
	select {
	case <-d.identCh:
	default:
	}
	ch.ClearReadable()

	if err := ch.Write(wire.AutoIDRequest()); err != nil {
		monitoring.Debugf("braillex: %s: identification request: %v", ch.Name(), err)
		return DeviceModel{}, false
	}

	if !ch.WaitReadable(d.responseWait) {
		brs, ok := ch.Port().(transport.BaudRateSetter)
		if !ok {
			return DeviceModel{}, false
		}
		if err := brs.SetBaudRate(TrioBaudRate); err != nil {
			monitoring.Debugf("braillex: %s: baud fallback: %v", ch.Name(), err)
			return DeviceModel{}, false
		}
		for i := 0; i < 2; i++ {
			if err := ch.Write(wire.AutoIDRequest()); err != nil {
				monitoring.Debugf("braillex: %s: identification request: %v", ch.Name(), err)
				return DeviceModel{}, false
			}
		}
		if !ch.WaitReadable(d.responseWait) {
			return DeviceModel{}, false
		}
	}

	select {
	case id := <-d.identCh:
		m, err := Identify(id)
		if err != nil {
			monitoring.Logf("braillex: %s: %v", ch.Name(), err)
			return DeviceModel{}, false
		}
		return m, true
	case <-time.After(d.probeWait):
		monitoring.Debugf("braillex: %s: traffic but no identification", ch.Name())
		return DeviceModel{}, false
	}
}

func (d *Driver) bind(m DeviceModel, ch *transport.Channel) {
	d.mu.Lock()
	d.model = m
	d.ch = ch
	d.state = StateBound
	d.keysDown = nil
	d.ignoreReleases = false
	d.repeatCount = 0
	d.mu.Unlock()
}
