//go:build linux

package socketcanv2

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync"
	"time"
	"unsafe"

	cansniffer "github.com/samsamfire/gocansniffer"
	can "github.com/samsamfire/gocansniffer/pkg/can"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

const (
	SocketCANFrameSize = 16
	DefaultRcvTimeout  = 100 * time.Millisecond
)

func init() {
	can.RegisterInterface("socketcanv2", NewSocketCanBus)
}

type CANframe struct {
	id   uint32
	dlc  uint8
	pad  uint8
	res0 uint8
	res1 uint8
	data [8]uint8
}

// SocketcanBus talks to a raw CAN socket. Acceptance filters are
// installed in the kernel with CAN_RAW_FILTER so rejected frames never
// reach user space.
type SocketcanBus struct {
	f          *os.File
	fd         int
	rxCallback cansniffer.FrameListener
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	filters    can.FilterTable
}

// Create a new SocketCAN bus. This expects the CAN channel to be up.
// e.g. running "ip a" should show can0 or something similar.
func NewSocketCanBus(channel string) (cansniffer.Bus, error) {
	iface, err := net.InterfaceByName(channel)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cansniffer.ErrHardware, err)
	}

	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW, unix.CAN_RAW)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create CAN socket : %v", cansniffer.ErrHardware, err)
	}
	tv := unix.NsecToTimeval(DefaultRcvTimeout.Nanoseconds())
	err = unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("%w: failed to set read timeout %v", cansniffer.ErrHardware, err)
	}
	addr := &unix.SockaddrCAN{Ifindex: iface.Index}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("%w: %v", cansniffer.ErrHardware, err)
	}
	return &SocketcanBus{fd: fd}, nil
}

// "Connect" implementation of Bus interface
func (s *SocketcanBus) Connect(...any) error {
	var ctx context.Context
	ctx, s.cancel = context.WithCancel(context.Background())
	s.f = os.NewFile(uintptr(s.fd), fmt.Sprintf("fd %d", s.fd))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.processIncoming(ctx)
	}()
	return nil
}

// "Disconnect" implementation of Bus interface
func (s *SocketcanBus) Disconnect() error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()
	s.wg.Wait()
	s.cancel = nil
	return s.f.Close()
}

// "Send" implementation of Bus interface
func (s *SocketcanBus) Send(frame cansniffer.Frame) error {
	if s.f == nil {
		return cansniffer.ErrNotConnected
	}
	if err := frame.Validate(); err != nil {
		return err
	}
	canFrame := &CANframe{}
	canFrame.id = can.EncodeID(&frame)
	canFrame.dlc = frame.DLC
	canFrame.data = frame.Data

	rawData := (*(*[SocketCANFrameSize]byte)(unsafe.Pointer(canFrame)))[:]
	n, err := s.f.Write(rawData)
	if err != nil {
		return fmt.Errorf("%w: %v", cansniffer.ErrHardware, err)
	}
	if n != SocketCANFrameSize {
		return fmt.Errorf("%w: short write %v", cansniffer.ErrHardware, n)
	}
	return nil
}

// process incoming frames. This is meant to be run inside of a goroutine
func (s *SocketcanBus) processIncoming(ctx context.Context) {
	rxFrame := make([]byte, SocketCANFrameSize)
	for {
		select {
		case <-ctx.Done():
			log.Infof("[CAN] exiting CAN bus reception, closed")
			return
		default:
			n, err := s.f.Read(rxFrame)
			if os.IsTimeout(err) {
				continue
			}
			if n != SocketCANFrameSize || err != nil {
				log.Infof("[CAN] exiting CAN bus reception : %v", err)
				return
			}
			// Direct translation in CANFrame
			frame := (*CANframe)(unsafe.Pointer(&rxFrame[0]))
			received, ok := can.DecodeFrame(frame.id, frame.dlc, frame.data)
			if ok && s.rxCallback != nil {
				s.rxCallback.Handle(received)
			}
		}
	}
}

// "Subscribe" implementation of Bus interface
func (s *SocketcanBus) Subscribe(rxCallback cansniffer.FrameListener) error {
	s.rxCallback = rxCallback
	return nil
}

// Enable own reception on the bus. CAN be useful when testing for example
func (s *SocketcanBus) SetReceiveOwn(enabled bool) error {
	enabledInt := 0
	if enabled {
		enabledInt = 1
	}
	log.Infof("[CAN] setting option 'CAN_RAW_RECV_OWN_MSGS' fd %v enabled %v", s.fd, enabled)
	return unix.SetsockoptInt(s.fd, unix.SOL_CAN_RAW, unix.CAN_RAW_RECV_OWN_MSGS, enabledInt)
}

func (s *SocketcanBus) ConfigureFilter(bank uint8, slot uint8, id uint32, mask uint32, kind cansniffer.IDKind) error {
	if err := s.filters.ConfigureFilter(bank, slot, id, mask, kind); err != nil {
		return err
	}
	return s.applyFilters()
}

func (s *SocketcanBus) DisableFilter(bank uint8, slot uint8) error {
	if err := s.filters.DisableFilter(bank, slot); err != nil {
		return err
	}
	return s.applyFilters()
}

func (s *SocketcanBus) DisableAllFilters() error {
	_ = s.filters.DisableAllFilters()
	return s.applyFilters()
}

// Install the filter table in the kernel
func (s *SocketcanBus) applyFilters() error {
	filters := KernelFilters(s.filters.Filters())
	log.Debugf("[CAN] setting option 'CAN_RAW_FILTER' fd %v filters %v", s.fd, filters)
	err := unix.SetsockoptCanRawFilter(s.fd, unix.SOL_CAN_RAW, unix.CAN_RAW_FILTER, filters)
	if err != nil {
		return fmt.Errorf("%w: CAN_RAW_FILTER : %v", cansniffer.ErrHardware, err)
	}
	return nil
}

// KernelFilters converts enabled slots to CAN_RAW_FILTER entries.
// The extended flag is part of every mask so that a filter only matches
// frames of its own kind. No slot gives a single accept all entry.
func KernelFilters(slots []can.FilterSlot) []unix.CanFilter {
	if len(slots) == 0 {
		return []unix.CanFilter{{Id: 0, Mask: 0}}
	}
	filters := make([]unix.CanFilter, 0, len(slots))
	for _, slot := range slots {
		id := slot.ID
		if slot.Kind == cansniffer.Extended {
			id |= can.CanEffFlag
		}
		filters = append(filters, unix.CanFilter{Id: id, Mask: slot.Mask | can.CanEffFlag})
	}
	return filters
}
