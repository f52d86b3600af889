package capture

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	cansniffer "github.com/samsamfire/gocansniffer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaptureRoundTrip(t *testing.T) {
	buf := &bytes.Buffer{}
	writer, err := NewWriter(buf)
	require.Nil(t, err)

	received := time.Unix(1700000000, 123456789)
	data := cansniffer.NewFrame(0x123, cansniffer.Standard, []byte{0x01, 0xA2})
	data.Timestamp = 1500
	remote := cansniffer.NewRemoteFrame(0x12345, cansniffer.Extended, 4)
	empty := cansniffer.NewFrame(0x7FF, cansniffer.Standard, nil)
	for _, frame := range []cansniffer.Frame{data, remote, empty} {
		assert.Nil(t, writer.Write(Record{Received: received, Frame: frame}))
	}
	assert.EqualValues(t, 3, writer.Count())

	reader, err := NewReader(buf)
	require.Nil(t, err)
	assert.False(t, reader.Created().IsZero())
	for _, expected := range []cansniffer.Frame{data, remote, empty} {
		rec, err := reader.Next()
		require.Nil(t, err)
		assert.Equal(t, expected, rec.Frame)
		assert.True(t, received.Equal(rec.Received))
	}
	_, err = reader.Next()
	assert.Equal(t, io.EOF, err)
}

func TestWriterRejectsInvalidFrame(t *testing.T) {
	writer, err := NewWriter(io.Discard)
	require.Nil(t, err)
	frame := cansniffer.NewFrame(0x800, cansniffer.Standard, []byte{1})
	assert.ErrorIs(t, writer.Write(Record{Frame: frame}), cansniffer.ErrInvalidParam)
	assert.EqualValues(t, 0, writer.Count())
}

func TestReaderRejectsForeignData(t *testing.T) {
	_, err := NewReader(bytes.NewReader(nil))
	assert.ErrorIs(t, err, ErrBadCapture)

	foreign, err := cbor.Marshal(map[int]any{1: "something else", 2: 1})
	require.Nil(t, err)
	_, err = NewReader(bytes.NewReader(foreign))
	assert.ErrorIs(t, err, ErrBadCapture)
}

func TestReaderTruncated(t *testing.T) {
	buf := &bytes.Buffer{}
	writer, err := NewWriter(buf)
	require.Nil(t, err)
	require.Nil(t, writer.Write(Record{Frame: cansniffer.NewFrame(0x10, cansniffer.Standard, []byte{1, 2, 3})}))
	truncated := buf.Bytes()[:buf.Len()-2]

	reader, err := NewReader(bytes.NewReader(truncated))
	require.Nil(t, err)
	_, err = reader.Next()
	assert.NotNil(t, err)
	assert.NotEqual(t, io.EOF, err)
}
