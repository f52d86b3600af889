package can

import cansniffer "github.com/samsamfire/gocansniffer"

// Flags carried in the upper bits of a Linux can_id
const (
	CanEffFlag uint32 = 0x80000000
	CanRtrFlag uint32 = 0x40000000
	CanErrFlag uint32 = 0x20000000
	CanSffMask uint32 = 0x000007FF
	CanEffMask uint32 = 0x1FFFFFFF
)

// EncodeID returns the Linux can_id of frame, flags included
func EncodeID(frame *cansniffer.Frame) uint32 {
	id := frame.ID & CanEffMask
	if frame.Kind == cansniffer.Extended {
		id |= CanEffFlag
	} else {
		id &= CanSffMask
	}
	if frame.Remote {
		id |= CanRtrFlag
	}
	return id
}

// DecodeFrame builds a frame from a Linux can_id, length and payload.
// ok is false for error frames which carry no bus traffic.
func DecodeFrame(canID uint32, length uint8, data [8]byte) (frame cansniffer.Frame, ok bool) {
	if canID&CanErrFlag != 0 {
		return frame, false
	}
	if canID&CanEffFlag != 0 {
		frame.Kind = cansniffer.Extended
		frame.ID = canID & CanEffMask
	} else {
		frame.ID = canID & CanSffMask
	}
	frame.Remote = canID&CanRtrFlag != 0
	frame.DLC = length
	if !frame.Remote {
		frame.Data = data
	}
	return frame, true
}
