package cansniffer

import (
	"fmt"
)

// Identifier limits
const (
	MaxStandardID uint32 = 0x7FF
	MaxExtendedID uint32 = 0x1FFFFFFF
	MaxDLC        uint8  = 8
)

// IDKind tags a frame identifier as 11-bit standard or 29-bit extended
type IDKind uint8

const (
	Standard IDKind = iota
	Extended
)

func (k IDKind) String() string {
	switch k {
	case Standard:
		return "STD"
	case Extended:
		return "EXT"
	default:
		return "UNKNOWN"
	}
}

// MaxID returns the largest identifier representable for the kind
func (k IDKind) MaxID() uint32 {
	if k == Extended {
		return MaxExtendedID
	}
	return MaxStandardID
}

// KindForID derives the frame kind from identifier magnitude
func KindForID(id uint32) IDKind {
	if id > MaxStandardID {
		return Extended
	}
	return Standard
}

// A CAN frame as received from or sent to the controller
type Frame struct {
	Timestamp uint32 // Reception tick in ms
	ID        uint32
	Kind      IDKind
	Remote    bool
	DLC       uint8
	Data      [8]byte
}

// NewFrame creates a data frame, payloads longer than 8 bytes are truncated
func NewFrame(id uint32, kind IDKind, data []byte) Frame {
	frame := Frame{ID: id, Kind: kind}
	frame.DLC = uint8(copy(frame.Data[:], data))
	return frame
}

// NewRemoteFrame creates a remote transmission request frame
func NewRemoteFrame(id uint32, kind IDKind, dlc uint8) Frame {
	return Frame{ID: id, Kind: kind, Remote: true, DLC: dlc}
}

func (f Frame) IsExtended() bool {
	return f.Kind == Extended
}

// Payload returns the data bytes carried by the frame, empty for remote frames
func (f *Frame) Payload() []byte {
	if f.Remote || f.DLC > MaxDLC {
		return nil
	}
	return f.Data[:f.DLC]
}

// Validate checks DLC and identifier range for the frame kind
func (f Frame) Validate() error {
	if f.DLC > MaxDLC {
		return fmt.Errorf("%w: dlc %v", ErrInvalidParam, f.DLC)
	}
	if f.Kind != Standard && f.Kind != Extended {
		return fmt.Errorf("%w: kind %v", ErrInvalidParam, f.Kind)
	}
	if f.ID > f.Kind.MaxID() {
		return fmt.Errorf("%w: id x%x out of range for %v", ErrInvalidParam, f.ID, f.Kind)
	}
	return nil
}

// Interface for handling a received CAN frame
type FrameListener interface {
	Handle(frame Frame)
}

// Transmitter sends a single frame on the bus
type Transmitter interface {
	Send(frame Frame) error
}

// FilterController programs the controller acceptance filter banks.
// Each bank holds two id/mask slots.
type FilterController interface {
	ConfigureFilter(bank uint8, slot uint8, id uint32, mask uint32, kind IDKind) error
	DisableFilter(bank uint8, slot uint8) error
	DisableAllFilters() error
}

// A CAN Bus interface
type Bus interface {
	Connect(...any) error                   // Connect to the CAN bus
	Disconnect() error                      // Disconnect from CAN bus
	Send(frame Frame) error                 // Send a frame on the bus
	Subscribe(callback FrameListener) error // Subscribe to all accepted CAN frames
	FilterController
}

// Indicator receives fire-and-forget activity and status signals
type Indicator interface {
	FlashRx()
	FlashTx()
	FlashCommand()
	IndicateStarted(started bool)
	IndicateError(hasError bool)
}
