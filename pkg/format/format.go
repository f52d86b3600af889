package format

import (
	"fmt"
	"strings"

	cansniffer "github.com/samsamfire/gocansniffer"
)

// Wire encoding of a frame
type Format uint8

const (
	Raw      Format = iota // Type tag, decimal id, dlc digit, payload
	Framed                 // COBS over Raw + in-band zero, then Delimiter
	ASCII                  // One human readable line
	Console                // Compact dump line, optionally colored
	Detailed               // Multi line dump, optionally colored
)

const (
	stdIDWidth = 4
	extIDWidth = 9

	// Longest Raw encoding: tag, extended id, dlc, 8 bytes
	MaxRawLen = 1 + extIDWidth + 1 + 8
	// Longest Framed encoding including the trailing delimiter
	MaxFramedLen = MaxRawLen + 1 + (MaxRawLen+1)/254 + 1 + 1
	// Longest text encoding
	MaxTextLen = 256

	// Byte separating Framed datagrams on the stream
	Delimiter byte = 0x00
)

// ANSI colors used by the console formats
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

var formatNames = map[Format]string{
	Raw:      "raw",
	Framed:   "framed",
	ASCII:    "ascii",
	Console:  "console",
	Detailed: "detailed",
}

func (f Format) String() string {
	name, ok := formatNames[f]
	if !ok {
		return "unknown"
	}
	return name
}

// ParseFormat returns the format matching name, case insensitive.
// "cobs" is accepted as an alias of framed.
func ParseFormat(name string) (Format, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "cobs" {
		return Framed, nil
	}
	for format, formatName := range formatNames {
		if formatName == name {
			return format, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", cansniffer.ErrUnsupportedFormat, name)
}

// Formatter encodes frames. The zero value renders without colors.
type Formatter struct {
	Color bool
}

// Append encodes frame and appends the result to dst
func (f Formatter) Append(dst []byte, frame *cansniffer.Frame, format Format) ([]byte, error) {
	if err := frame.Validate(); err != nil {
		return dst, err
	}
	switch format {
	case Raw:
		return AppendRaw(dst, frame), nil
	case Framed:
		return AppendFramed(dst, frame), nil
	case ASCII:
		return AppendASCII(dst, frame), nil
	case Console:
		return f.AppendConsole(dst, frame), nil
	case Detailed:
		return f.AppendDetailed(dst, frame), nil
	default:
		return dst, fmt.Errorf("%w: %v", cansniffer.ErrUnsupportedFormat, format)
	}
}

// Encode writes the encoded frame into dst and returns the number of bytes
// written. Nothing is written if dst cannot hold the whole encoding.
func (f Formatter) Encode(dst []byte, frame *cansniffer.Frame, format Format) (int, error) {
	var scratch [MaxTextLen]byte
	encoded, err := f.Append(scratch[:0], frame, format)
	if err != nil {
		return 0, err
	}
	if len(encoded) > len(dst) {
		return 0, fmt.Errorf("%w: need %v, have %v", cansniffer.ErrBufferTooSmall, len(encoded), len(dst))
	}
	return copy(dst, encoded), nil
}

func (f Formatter) colors(frame *cansniffer.Frame) (start string, end string) {
	if !f.Color {
		return "", ""
	}
	switch {
	case frame.Remote:
		return colorYellow, colorReset
	case frame.Kind == cansniffer.Standard:
		return colorGreen, colorReset
	default:
		return colorCyan, colorReset
	}
}
