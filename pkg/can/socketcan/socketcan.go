package socketcan

import (
	"fmt"

	sockcan "github.com/brutella/can"
	cansniffer "github.com/samsamfire/gocansniffer"
	can "github.com/samsamfire/gocansniffer/pkg/can"
	log "github.com/sirupsen/logrus"
)

// Basic wrapper for socketcan it uses the implementation
// that can be found here : https://github.com/brutella/can
// The socket receives all traffic, acceptance filters are applied in software.

func init() {
	can.RegisterInterface("socketcan", NewSocketCanBus)
}

type SocketcanBus struct {
	bus        *sockcan.Bus
	rxCallback cansniffer.FrameListener
	filters    can.FilterTable
}

func NewSocketCanBus(name string) (cansniffer.Bus, error) {
	bus, err := sockcan.NewBusForInterfaceWithName(name)
	if err != nil {
		return nil, fmt.Errorf("%w: socketcan %v : %v", cansniffer.ErrHardware, name, err)
	}
	return &SocketcanBus{bus: bus}, nil
}

// "Connect" implementation of Bus interface
func (socketcan *SocketcanBus) Connect(...any) error {
	go func() {
		err := socketcan.bus.ConnectAndPublish()
		if err != nil {
			log.Errorf("[CAN] socketcan reception stopped : %v", err)
		}
	}()
	return nil
}

// "Disconnect" implementation of Bus interface
func (socketcan *SocketcanBus) Disconnect() error {
	return socketcan.bus.Disconnect()
}

// "Send" implementation of Bus interface
func (socketcan *SocketcanBus) Send(frame cansniffer.Frame) error {
	if err := frame.Validate(); err != nil {
		return err
	}
	return socketcan.bus.Publish(
		sockcan.Frame{
			ID:     can.EncodeID(&frame),
			Length: frame.DLC,
			Flags:  0,
			Res0:   0,
			Res1:   0,
			Data:   frame.Data,
		})
}

// "Subscribe" implementation of Bus interface
func (socketcan *SocketcanBus) Subscribe(rxCallback cansniffer.FrameListener) error {
	socketcan.rxCallback = rxCallback
	// brutella/can defines a "Handle" interface for handling received CAN frames
	socketcan.bus.Subscribe(socketcan)
	return nil
}

// brutella/can specific "Handle" implementation
func (socketcan *SocketcanBus) Handle(frame sockcan.Frame) {
	received, ok := can.DecodeFrame(frame.ID, frame.Length, frame.Data)
	if !ok || socketcan.rxCallback == nil || !socketcan.filters.Accepts(&received) {
		return
	}
	socketcan.rxCallback.Handle(received)
}

func (socketcan *SocketcanBus) ConfigureFilter(bank uint8, slot uint8, id uint32, mask uint32, kind cansniffer.IDKind) error {
	return socketcan.filters.ConfigureFilter(bank, slot, id, mask, kind)
}

func (socketcan *SocketcanBus) DisableFilter(bank uint8, slot uint8) error {
	return socketcan.filters.DisableFilter(bank, slot)
}

func (socketcan *SocketcanBus) DisableAllFilters() error {
	return socketcan.filters.DisableAllFilters()
}
