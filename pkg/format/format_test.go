package format

import (
	"bufio"
	"bytes"
	"testing"

	cansniffer "github.com/samsamfire/gocansniffer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	for _, format := range []Format{Raw, Framed, ASCII, Console, Detailed} {
		parsed, err := ParseFormat(format.String())
		assert.Nil(t, err)
		assert.Equal(t, format, parsed)
	}
	parsed, err := ParseFormat(" COBS ")
	assert.Nil(t, err)
	assert.Equal(t, Framed, parsed)
	_, err = ParseFormat("json")
	assert.ErrorIs(t, err, cansniffer.ErrUnsupportedFormat)
}

func TestRawStandard(t *testing.T) {
	frame := cansniffer.NewFrame(256, cansniffer.Standard, []byte{0x01, 0x00, 0xFF})
	raw := AppendRaw(nil, &frame)
	assert.Equal(t, []byte{'t', '0', '2', '5', '6', '3', 0x01, 0x00, 0xFF}, raw)
}

func TestRawExtended(t *testing.T) {
	frame := cansniffer.NewFrame(0x1FFFFFFF, cansniffer.Extended, []byte{0xAA})
	assert.Equal(t, append([]byte("T5368709111"), 0xAA), AppendRaw(nil, &frame))

	frame = cansniffer.NewFrame(5, cansniffer.Extended, nil)
	assert.Equal(t, []byte("T0000000050"), AppendRaw(nil, &frame))
}

func TestRawRemote(t *testing.T) {
	frame := cansniffer.NewRemoteFrame(0x7FF, cansniffer.Standard, 4)
	assert.Equal(t, []byte("r20474"), AppendRaw(nil, &frame))
	frame = cansniffer.NewRemoteFrame(0x12345, cansniffer.Extended, 8)
	assert.Equal(t, []byte("R0000745658"), AppendRaw(nil, &frame))
}

func TestFramedRoundTrip(t *testing.T) {
	frames := []cansniffer.Frame{
		cansniffer.NewFrame(0, cansniffer.Standard, nil),
		cansniffer.NewFrame(0x123, cansniffer.Standard, []byte{0, 0, 0, 0, 0, 0, 0, 0}),
		cansniffer.NewFrame(0x18FF00FE, cansniffer.Extended, []byte{1, 2, 3, 4, 5, 6, 7, 8}),
		cansniffer.NewRemoteFrame(0x10, cansniffer.Standard, 2),
	}
	for _, frame := range frames {
		framed := AppendFramed(nil, &frame)
		assert.LessOrEqual(t, len(framed), MaxFramedLen)
		assert.Equal(t, Delimiter, framed[len(framed)-1])
		assert.Equal(t, -1, bytes.IndexByte(framed[:len(framed)-1], 0))

		raw := make([]byte, MaxRawLen+1)
		n, err := Unframe(raw, framed)
		require.Nil(t, err)
		assert.Equal(t, AppendRaw(nil, &frame), raw[:n])

		decoded, err := DecodeRaw(raw[:n])
		require.Nil(t, err)
		assert.Equal(t, frame, decoded)
	}
}

func TestUnframeErrors(t *testing.T) {
	buf := make([]byte, MaxRawLen+1)
	_, err := Unframe(buf, []byte{0x00})
	assert.ErrorIs(t, err, cansniffer.ErrParse)
	// Valid COBS but without the in-band zero
	_, err = Unframe(buf, []byte{0x03, 't', '1'})
	assert.ErrorIs(t, err, cansniffer.ErrParse)
	_, err = Unframe(buf, []byte{0x05, 't'})
	assert.ErrorIs(t, err, cansniffer.ErrParse)
}

func TestDecodeRawErrors(t *testing.T) {
	for _, raw := range [][]byte{
		[]byte("t01"),
		[]byte("x01230"),
		[]byte("t01a30"),
		[]byte("t01239"),
		[]byte("t01232A"),
		[]byte("t99990"),
		append([]byte("r01231"), 0xAA),
	} {
		_, err := DecodeRaw(raw)
		assert.ErrorIs(t, err, cansniffer.ErrParse, "raw %q", raw)
	}
}

func TestScanFrames(t *testing.T) {
	stream := []byte{0x00}
	var expected []cansniffer.Frame
	for i := 0; i < 5; i++ {
		frame := cansniffer.NewFrame(uint32(0x100+i), cansniffer.Standard, []byte{byte(i), 0})
		expected = append(expected, frame)
		stream = AppendFramed(stream, &frame)
	}
	scanner := bufio.NewScanner(bytes.NewReader(stream))
	scanner.Split(ScanFrames)
	raw := make([]byte, MaxRawLen+1)
	var decoded []cansniffer.Frame
	for scanner.Scan() {
		n, err := Unframe(raw, scanner.Bytes())
		require.Nil(t, err)
		frame, err := DecodeRaw(raw[:n])
		require.Nil(t, err)
		decoded = append(decoded, frame)
	}
	assert.Nil(t, scanner.Err())
	assert.Equal(t, expected, decoded)
}

func TestScanFramesPartial(t *testing.T) {
	advance, token, err := ScanFrames([]byte{0x02, 'a'}, false)
	assert.Nil(t, err)
	assert.Equal(t, 0, advance)
	assert.Nil(t, token)
	advance, token, err = ScanFrames([]byte{0x02, 'a'}, true)
	assert.Nil(t, err)
	assert.Equal(t, 2, advance)
	assert.Equal(t, []byte{0x02, 'a'}, token)
}

func TestASCII(t *testing.T) {
	frame := cansniffer.NewFrame(0x123, cansniffer.Standard, []byte{0x01, 0xA2})
	frame.Timestamp = 12345
	assert.Equal(t, "[0000012345] STD_DATA 0x123 DLC:2 DATA:01 A2\r\n", string(AppendASCII(nil, &frame)))

	frame = cansniffer.NewRemoteFrame(0x18FF00FE, cansniffer.Extended, 8)
	assert.Equal(t, "[0000000000] EXT_REMOTE 0x18FF00FE DLC:8\r\n", string(AppendASCII(nil, &frame)))
}

func TestConsole(t *testing.T) {
	frame := cansniffer.NewFrame(0x7E8, cansniffer.Standard, []byte{0x03, 0x41})
	frame.Timestamp = 42
	out := string(Formatter{}.AppendConsole(nil, &frame))
	assert.Equal(t, "00000042 T 7E8 [2] 03 41 "+"                  "+"\r\n", out)

	colored := string(Formatter{Color: true}.AppendConsole(nil, &frame))
	assert.Contains(t, colored, colorGreen+"00000042"+colorReset)

	remote := cansniffer.NewRemoteFrame(0x7E8, cansniffer.Standard, 2)
	colored = string(Formatter{Color: true}.AppendConsole(nil, &remote))
	assert.Contains(t, colored, colorYellow+"R"+colorReset)
}

func TestDetailed(t *testing.T) {
	frame := cansniffer.NewFrame(0x18FF00FE, cansniffer.Extended, []byte{'H', 'i', 0x00})
	frame.Timestamp = 1000
	out := string(Formatter{}.AppendDetailed(nil, &frame))
	assert.Contains(t, out, "Timestamp: 1000 ms\r\n")
	assert.Contains(t, out, "ID:        0x18FF00FE (EXT, DATA)\r\n")
	assert.Contains(t, out, "DLC:       3 bytes\r\n")
	assert.Contains(t, out, "Data:      48 69 00 \r\n")
	assert.Contains(t, out, "ASCII:     \"Hi.\"\r\n")
}

func TestEncode(t *testing.T) {
	formatter := Formatter{}
	frame := cansniffer.NewFrame(0x100, cansniffer.Standard, []byte{1, 2})
	dst := make([]byte, MaxFramedLen)
	n, err := formatter.Encode(dst, &frame, Framed)
	require.Nil(t, err)
	assert.Equal(t, AppendFramed(nil, &frame), dst[:n])

	_, err = formatter.Encode(dst[:3], &frame, Raw)
	assert.ErrorIs(t, err, cansniffer.ErrBufferTooSmall)

	invalid := cansniffer.NewFrame(0x800, cansniffer.Standard, nil)
	_, err = formatter.Encode(dst, &invalid, Raw)
	assert.ErrorIs(t, err, cansniffer.ErrInvalidParam)

	_, err = formatter.Encode(dst, &frame, Format(42))
	assert.ErrorIs(t, err, cansniffer.ErrUnsupportedFormat)
}
