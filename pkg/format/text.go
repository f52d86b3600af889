package format

import (
	"fmt"

	cansniffer "github.com/samsamfire/gocansniffer"
)

func kindLabel(frame *cansniffer.Frame) string {
	switch {
	case frame.Kind == cansniffer.Extended && frame.Remote:
		return "EXT_REMOTE"
	case frame.Kind == cansniffer.Extended:
		return "EXT_DATA"
	case frame.Remote:
		return "STD_REMOTE"
	default:
		return "STD_DATA"
	}
}

func appendHexID(dst []byte, frame *cansniffer.Frame) []byte {
	if frame.Kind == cansniffer.Extended {
		return fmt.Appendf(dst, "0x%08X", frame.ID)
	}
	return fmt.Appendf(dst, "0x%03X", frame.ID)
}

// AppendASCII appends a single line such as
// "[0000012345] STD_DATA 0x123 DLC:2 DATA:01 02\r\n"
func AppendASCII(dst []byte, frame *cansniffer.Frame) []byte {
	dst = fmt.Appendf(dst, "[%010d] %s ", frame.Timestamp, kindLabel(frame))
	dst = appendHexID(dst, frame)
	dst = fmt.Appendf(dst, " DLC:%d", frame.DLC)
	payload := frame.Payload()
	if len(payload) > 0 {
		dst = append(dst, " DATA:"...)
		for i, b := range payload {
			if i > 0 {
				dst = append(dst, ' ')
			}
			dst = fmt.Appendf(dst, "%02X", b)
		}
	}
	return append(dst, "\r\n"...)
}

// AppendConsole appends a compact dump line, payload padded to 8 columns
func (f Formatter) AppendConsole(dst []byte, frame *cansniffer.Frame) []byte {
	start, end := f.colors(frame)
	marker := byte('T')
	if frame.Remote {
		marker = 'R'
	}
	dst = fmt.Appendf(dst, "%s%08d%s %s%c%s %03X [%d] ", start, frame.Timestamp, end, start, marker, end, frame.ID, frame.DLC)
	payload := frame.Payload()
	for _, b := range payload {
		dst = fmt.Appendf(dst, "%02X ", b)
	}
	for i := len(payload); i < int(cansniffer.MaxDLC); i++ {
		dst = append(dst, "   "...)
	}
	return append(dst, "\r\n"...)
}

// AppendDetailed appends a multi line description of the frame
func (f Formatter) AppendDetailed(dst []byte, frame *cansniffer.Frame) []byte {
	start, end := f.colors(frame)
	frameType := "DATA"
	if frame.Remote {
		frameType = "RTR"
	}
	dst = fmt.Appendf(dst, "\r\n%s=== CAN Message ===%s\r\n", start, end)
	dst = fmt.Appendf(dst, "Timestamp: %d ms\r\n", frame.Timestamp)
	dst = fmt.Appendf(dst, "ID:        %s0x%08X%s (%v, %s)\r\n", start, frame.ID, end, frame.Kind, frameType)
	dst = fmt.Appendf(dst, "DLC:       %d bytes\r\n", frame.DLC)
	dst = append(dst, "Data:      "...)
	payload := frame.Payload()
	for _, b := range payload {
		dst = fmt.Appendf(dst, "%02X ", b)
	}
	dst = append(dst, "\r\nASCII:     \""...)
	for _, b := range payload {
		if b >= 32 && b <= 126 {
			dst = append(dst, b)
		} else {
			dst = append(dst, '.')
		}
	}
	return append(dst, "\"\r\n"...)
}
