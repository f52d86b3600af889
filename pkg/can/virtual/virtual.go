package virtual

import (
	"errors"
	"fmt"
	"sync"

	cansniffer "github.com/samsamfire/gocansniffer"
	can "github.com/samsamfire/gocansniffer/pkg/can"
	log "github.com/sirupsen/logrus"
)

// In memory CAN bus used for simulation and testing.
// Buses created on the same channel name see each other's frames,
// the channel plays the role of the wire.

func init() {
	can.RegisterInterface("virtual", NewVirtualCanBus)
	can.RegisterInterface("virtualcan", NewVirtualCanBus)
}

var ErrInjected = errors.New("injected failure")

type wire struct {
	mu    sync.Mutex
	buses []*Bus
}

var (
	wiresMu sync.Mutex
	wires   = make(map[string]*wire)
)

func getWire(channel string) *wire {
	wiresMu.Lock()
	defer wiresMu.Unlock()
	w, ok := wires[channel]
	if !ok {
		w = &wire{}
		wires[channel] = w
	}
	return w
}

func (w *wire) attach(b *Bus) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, bus := range w.buses {
		if bus == b {
			return
		}
	}
	w.buses = append(w.buses, b)
}

func (w *wire) detach(b *Bus) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, bus := range w.buses {
		if bus == b {
			w.buses = append(w.buses[:i], w.buses[i+1:]...)
			return
		}
	}
}

// Buses attached to the wire, except from
func (w *wire) peers(from *Bus) []*Bus {
	w.mu.Lock()
	defer w.mu.Unlock()
	peers := make([]*Bus, 0, len(w.buses))
	for _, bus := range w.buses {
		if bus != from {
			peers = append(peers, bus)
		}
	}
	return peers
}

// Failures selects which driver calls return [ErrInjected]
type Failures struct {
	Send            bool
	ConfigureFilter bool
	DisableFilter   bool
	DisableAll      bool
}

type Bus struct {
	mu           sync.Mutex
	channel      string
	wire         *wire
	connected    bool
	receiveOwn   bool
	framehandler cansniffer.FrameListener
	filters      can.FilterTable
	failures     Failures
	sentCount    uint32
}

func NewVirtualCanBus(channel string) (cansniffer.Bus, error) {
	return &Bus{channel: channel, wire: getWire(channel)}, nil
}

// "Connect" attaches the bus to its channel
func (b *Bus) Connect(...any) error {
	b.mu.Lock()
	b.connected = true
	b.mu.Unlock()
	b.wire.attach(b)
	log.Debugf("[CAN] virtual bus connected to %v", b.channel)
	return nil
}

// "Disconnect" detaches the bus from its channel
func (b *Bus) Disconnect() error {
	b.wire.detach(b)
	b.mu.Lock()
	b.connected = false
	b.mu.Unlock()
	return nil
}

// "Send" implementation of Bus interface
func (b *Bus) Send(frame cansniffer.Frame) error {
	b.mu.Lock()
	connected := b.connected
	failure := b.failures.Send
	receiveOwn := b.receiveOwn
	if connected && !failure {
		b.sentCount++
	}
	b.mu.Unlock()
	if !connected {
		return fmt.Errorf("%w: virtual channel %v", cansniffer.ErrNotConnected, b.channel)
	}
	if failure {
		return fmt.Errorf("send : %w", ErrInjected)
	}
	if err := frame.Validate(); err != nil {
		return err
	}
	frame.Timestamp = 0
	for _, peer := range b.wire.peers(b) {
		peer.receive(frame)
	}
	// Local loopback
	if receiveOwn {
		b.receive(frame)
	}
	return nil
}

// "Subscribe" implementation of Bus interface
func (b *Bus) Subscribe(framehandler cansniffer.FrameListener) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.framehandler = framehandler
	return nil
}

// Inject simulates the reception of frame from the wire
func (b *Bus) Inject(frame cansniffer.Frame) {
	b.receive(frame)
}

func (b *Bus) receive(frame cansniffer.Frame) {
	b.mu.Lock()
	handler := b.framehandler
	connected := b.connected
	b.mu.Unlock()
	if !connected || handler == nil || !b.filters.Accepts(&frame) {
		return
	}
	handler.Handle(frame)
}

func (b *Bus) ConfigureFilter(bank uint8, slot uint8, id uint32, mask uint32, kind cansniffer.IDKind) error {
	if b.failureSet(func(f *Failures) bool { return f.ConfigureFilter }) {
		return fmt.Errorf("configure filter : %w", ErrInjected)
	}
	return b.filters.ConfigureFilter(bank, slot, id, mask, kind)
}

func (b *Bus) DisableFilter(bank uint8, slot uint8) error {
	if b.failureSet(func(f *Failures) bool { return f.DisableFilter }) {
		return fmt.Errorf("disable filter : %w", ErrInjected)
	}
	return b.filters.DisableFilter(bank, slot)
}

// DisableAllFilters always clears the table, an injected failure is only
// reported afterwards
func (b *Bus) DisableAllFilters() error {
	err := b.filters.DisableAllFilters()
	if b.failureSet(func(f *Failures) bool { return f.DisableAll }) {
		return fmt.Errorf("disable all filters : %w", ErrInjected)
	}
	return err
}

func (b *Bus) failureSet(selector func(f *Failures) bool) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return selector(&b.failures)
}

func (b *Bus) SetFailures(failures Failures) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = failures
}

func (b *Bus) SetReceiveOwn(receiveOwn bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.receiveOwn = receiveOwn
}

// Filters returns the enabled acceptance filters
func (b *Bus) Filters() []can.FilterSlot {
	return b.filters.Filters()
}

// Number of frames successfully put on the wire
func (b *Bus) SentCount() uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sentCount
}
