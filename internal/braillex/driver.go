package braillex

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/braillekit/braillex/internal/braillex/wire"
	"github.com/braillekit/braillex/internal/monitoring"
	"github.com/braillekit/braillex/internal/timeutil"
	"github.com/braillekit/braillex/internal/transport"
)

// State tracks the driver lifecycle.
type State int

const (
	StateIdle State = iota
	StateDiscovering
	StateIdentifying
	StateBound
	StateTerminating
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDiscovering:
		return "discovering"
	case StateIdentifying:
		return "identifying"
	case StateBound:
		return "bound"
	case StateTerminating:
		return "terminating"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// KeyHandler receives gesture events. It runs on the transport reader
// goroutine, so implementations hand long work off to their own
// goroutine or channel.
type KeyHandler func(KeyEvent)

// Option configures a Driver before discovery runs.
type Option func(*Driver)

// WithKeyHandler sets the gesture event sink.
func WithKeyHandler(h KeyHandler) Option { return func(d *Driver) { d.handler = h } }

// WithClock substitutes the clock used for the mandatory settle delays.
func WithClock(c timeutil.Clock) Option { return func(d *Driver) { d.clock = c } }

// WithProbeWait bounds how long a probed candidate may take to identify
// after its first response byte.
func WithProbeWait(t time.Duration) Option { return func(d *Driver) { d.probeWait = t } }

// WithResponseWait bounds the quick silence check after sending an
// identification request, before the baud fallback kicks in.
func WithResponseWait(t time.Duration) Option { return func(d *Driver) { d.responseWait = t } }

// WithIOTimeout bounds each read while pulling a frame off the port.
func WithIOTimeout(t time.Duration) Option { return func(d *Driver) { d.ioTimeout = t } }

// WithSettleTime sets the delay observed on both sides of closing the
// port during shutdown.
func WithSettleTime(t time.Duration) Option { return func(d *Driver) { d.settleTime = t } }

// WithRepeatInterval sets how many identical held-key reports make one
// repeat event.
func WithRepeatInterval(n int) Option { return func(d *Driver) { d.repeatInterval = n } }

// WithEnumerator substitutes candidate enumeration for the "auto" port
// spec.
func WithEnumerator(fn func() []transport.Candidate) Option {
	return func(d *Driver) { d.enumerate = fn }
}

// WithOpener substitutes how candidates are opened.
func WithOpener(fn func(transport.Candidate, int) (*transport.Channel, error)) Option {
	return func(d *Driver) { d.open = fn }
}

const (
	defaultIOTimeout      = 200 * time.Millisecond
	defaultProbeWait      = 200 * time.Millisecond
	defaultResponseWait   = 50 * time.Millisecond
	defaultSettleTime     = 200 * time.Millisecond
	defaultRepeatInterval = 10
)

// Driver binds one display and runs it until Terminate. Construction
// performs discovery: candidates are probed in order and the first
// display that identifies wins.
type Driver struct {
	handler        KeyHandler
	clock          timeutil.Clock
	ioTimeout      time.Duration
	probeWait      time.Duration
	responseWait   time.Duration
	settleTime     time.Duration
	repeatInterval int
	enumerate      func() []transport.Candidate
	open           func(transport.Candidate, int) (*transport.Channel, error)

	mu    sync.Mutex
	state State
	model DeviceModel
	ch    *transport.Channel

	closeOnce sync.Once
	closeErr  error

	identCh chan [2]byte

	// Chord state, touched only on the reader goroutine.
	keysDown       []int
	ignoreReleases bool
	repeatCount    int

	cellAcks   atomic.Uint64
	keyPackets atomic.Uint64
	readErrors atomic.Uint64
}

// New discovers and binds a display. portSpec selects what to probe:
// "auto" enumerates every transport, "serial:/dev/ttyUSB0" or a bare
// device path names a serial port, "hid:PATH" a HID device, and "usb"
// the dedicated USB product. The returned driver is bound and reporting
// key events.
func New(portSpec string, opts ...Option) (*Driver, error) {
	d := &Driver{
		clock:          timeutil.NewRealClock(),
		ioTimeout:      defaultIOTimeout,
		probeWait:      defaultProbeWait,
		responseWait:   defaultResponseWait,
		settleTime:     defaultSettleTime,
		repeatInterval: defaultRepeatInterval,
		enumerate:      transport.ListCandidates,
		open:           transport.Open,
		identCh:        make(chan [2]byte, 1),
		state:          StateDiscovering,
	}
	for _, o := range opts {
		o(d)
	}
	if err := d.discover(portSpec); err != nil {
		d.setState(StateClosed)
		return nil, err
	}
	return d, nil
}

// dispatch consumes one frame after the reader sighted its first byte.
// Anything that is not a frame start is desynchronization noise.
func (d *Driver) dispatch(ch *transport.Channel, first byte) {
	if first != wire.STX {
		d.readErrors.Add(1)
		monitoring.Debugf("braillex: %s: discarding byte 0x%02X while resynchronizing", ch.Name(), first)
		return
	}
	pkt, err := wire.ReadPacketBody(ch.FrameReader(d.ioTimeout))
	if err != nil {
		d.readErrors.Add(1)
		monitoring.Debugf("braillex: %s: frame read: %v", ch.Name(), err)
		return
	}

	switch pkt.Type {
	case wire.PktAutoID:
		if len(pkt.Payload) >= 2 {
			id := [2]byte{pkt.Payload[0], pkt.Payload[1]}
			select {
			case d.identCh <- id:
			default:
			}
		}
	case wire.PktKeyState:
		d.keyPackets.Add(1)
		d.handleKeyPacket(pkt)
	case wire.PktCellAck:
		d.cellAcks.Add(1)
	default:
		monitoring.Debugf("braillex: %s: ignoring packet type 0x%02X", ch.Name(), pkt.Type)
	}
}

// Refresh pushes new cell content to the display. cells must match the
// bound model's cell count exactly.
func (d *Driver) Refresh(cells []byte) error {
	d.mu.Lock()
	if d.state != StateBound {
		d.mu.Unlock()
		return ErrNotBound
	}
	m := d.model
	ch := d.ch
	d.mu.Unlock()

	if len(cells) != m.Cells {
		return fmt.Errorf("braillex: refresh with %d cells on %s, want %d", len(cells), m.Name, m.Cells)
	}
	if err := ch.Write(m.EncodeCells(cells)); err != nil {
		return &ConnectionError{Port: ch.Name(), Err: err}
	}
	return nil
}

// Terminate releases the display. The settle delay before and after the
// port close is mandatory: the firmware misses the next identification if
// the line drops mid-exchange. Terminate is idempotent and safe to call
// concurrently; every caller observes the first call's result.
func (d *Driver) Terminate() error {
	d.closeOnce.Do(func() { d.closeErr = d.terminate() })
	return d.closeErr
}

func (d *Driver) terminate() error {
	d.mu.Lock()
	ch := d.ch
	d.state = StateTerminating
	d.mu.Unlock()

	if ch == nil {
		d.setState(StateClosed)
		return nil
	}
	d.clock.Sleep(d.settleTime)
	err := ch.Close()
	d.clock.Sleep(d.settleTime)
	d.setState(StateClosed)

	if err != nil {
		return &ConnectionError{Port: ch.Name(), Err: err}
	}
	return nil
}

// Model returns the bound display, if any.
func (d *Driver) Model() (DeviceModel, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.model, d.state == StateBound
}

// State returns the current lifecycle state.
func (d *Driver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// PortName names the bound attachment point, empty before binding.
func (d *Driver) PortName() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ch == nil {
		return ""
	}
	return d.ch.Name()
}

// Stats is a point-in-time snapshot for status surfaces.
type Stats struct {
	State      string `json:"state"`
	Model      string `json:"model,omitempty"`
	Port       string `json:"port,omitempty"`
	Cells      int    `json:"cells,omitempty"`
	CellAcks   uint64 `json:"cell_acks"`
	KeyPackets uint64 `json:"key_packets"`
	ReadErrors uint64 `json:"read_errors"`
}

func (d *Driver) Stats() Stats {
	d.mu.Lock()
	s := Stats{State: d.state.String()}
	if d.state == StateBound {
		s.Model = d.model.Name
		s.Cells = d.model.Cells
	}
	if d.ch != nil {
		s.Port = d.ch.Name()
	}
	d.mu.Unlock()

	s.CellAcks = d.cellAcks.Load()
	s.KeyPackets = d.keyPackets.Load()
	s.ReadErrors = d.readErrors.Load()
	return s
}

func (d *Driver) setState(s State) {
	d.mu.Lock()
	d.state = s
	d.mu.Unlock()
}
