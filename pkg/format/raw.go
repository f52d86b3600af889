package format

import (
	"bytes"
	"fmt"

	cansniffer "github.com/samsamfire/gocansniffer"
	"github.com/samsamfire/gocansniffer/internal/cobs"
)

func typeTag(frame *cansniffer.Frame) byte {
	switch {
	case frame.Kind == cansniffer.Extended && frame.Remote:
		return 'R'
	case frame.Kind == cansniffer.Extended:
		return 'T'
	case frame.Remote:
		return 'r'
	default:
		return 't'
	}
}

func idWidth(kind cansniffer.IDKind) int {
	if kind == cansniffer.Extended {
		return extIDWidth
	}
	return stdIDWidth
}

// Zero padded decimal rendering, digits above width are dropped
func appendDecimalID(dst []byte, id uint32, width int) []byte {
	var digits [extIDWidth]byte
	for i := width - 1; i >= 0; i-- {
		digits[i] = '0' + byte(id%10)
		id /= 10
	}
	return append(dst, digits[:width]...)
}

// AppendRaw appends the Raw encoding of frame, e.g. "t02563" followed by
// 3 payload bytes. The frame is expected to be valid.
func AppendRaw(dst []byte, frame *cansniffer.Frame) []byte {
	dst = append(dst, typeTag(frame))
	dst = appendDecimalID(dst, frame.ID, idWidth(frame.Kind))
	dst = append(dst, '0'+frame.DLC%10)
	if !frame.Remote {
		dst = append(dst, frame.Payload()...)
	}
	return dst
}

// AppendFramed appends the self delimiting encoding of frame
func AppendFramed(dst []byte, frame *cansniffer.Frame) []byte {
	var raw [MaxRawLen + 1]byte
	n := len(AppendRaw(raw[:0], frame))
	raw[n] = 0
	n++
	var encoded [MaxFramedLen]byte
	// Cannot fail, encoded is sized for the longest raw frame
	m, _ := cobs.Encode(encoded[:], raw[:n])
	dst = append(dst, encoded[:m]...)
	return append(dst, Delimiter)
}

// Unframe reverses [AppendFramed]: the trailing delimiter is optional.
// The Raw encoding is written to dst and its length returned.
func Unframe(dst []byte, datagram []byte) (int, error) {
	if n := len(datagram); n > 0 && datagram[n-1] == Delimiter {
		datagram = datagram[:n-1]
	}
	if len(datagram) == 0 {
		return 0, fmt.Errorf("%w: empty datagram", cansniffer.ErrParse)
	}
	n, err := cobs.Decode(dst, datagram)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", cansniffer.ErrParse, err)
	}
	if n == 0 || dst[n-1] != 0 {
		return 0, fmt.Errorf("%w: missing in-band terminator", cansniffer.ErrParse)
	}
	return n - 1, nil
}

// DecodeRaw parses a Raw encoding back into a frame. Timestamp is left 0.
func DecodeRaw(raw []byte) (cansniffer.Frame, error) {
	frame := cansniffer.Frame{}
	if len(raw) < 1+stdIDWidth+1 {
		return frame, fmt.Errorf("%w: raw frame too short (%v)", cansniffer.ErrParse, len(raw))
	}
	switch raw[0] {
	case 't':
	case 'r':
		frame.Remote = true
	case 'T':
		frame.Kind = cansniffer.Extended
	case 'R':
		frame.Kind = cansniffer.Extended
		frame.Remote = true
	default:
		return frame, fmt.Errorf("%w: unknown type tag %q", cansniffer.ErrParse, raw[0])
	}
	width := idWidth(frame.Kind)
	if len(raw) < 1+width+1 {
		return frame, fmt.Errorf("%w: raw frame too short (%v)", cansniffer.ErrParse, len(raw))
	}
	for _, digit := range raw[1 : 1+width] {
		if digit < '0' || digit > '9' {
			return frame, fmt.Errorf("%w: invalid id digit %q", cansniffer.ErrParse, digit)
		}
		frame.ID = frame.ID*10 + uint32(digit-'0')
	}
	dlc := raw[1+width]
	if dlc < '0' || dlc > '8' {
		return frame, fmt.Errorf("%w: invalid dlc %q", cansniffer.ErrParse, dlc)
	}
	frame.DLC = dlc - '0'
	payload := raw[2+width:]
	expected := int(frame.DLC)
	if frame.Remote {
		expected = 0
	}
	if len(payload) != expected {
		return frame, fmt.Errorf("%w: expected %v payload bytes, got %v", cansniffer.ErrParse, expected, len(payload))
	}
	copy(frame.Data[:], payload)
	if err := frame.Validate(); err != nil {
		return frame, fmt.Errorf("%w: %v", cansniffer.ErrParse, err)
	}
	return frame, nil
}

// ScanFrames is a [bufio.SplitFunc] returning Framed datagrams without their
// delimiter. Empty datagrams are skipped, a trailing partial datagram is
// returned as is at EOF.
func ScanFrames(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := 0
	for start < len(data) && data[start] == Delimiter {
		start++
	}
	if i := bytes.IndexByte(data[start:], Delimiter); i >= 0 {
		return start + i + 1, data[start : start+i], nil
	}
	if atEOF && start < len(data) {
		return len(data), data[start:], nil
	}
	return start, nil, nil
}
