package cobs

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sequence(from, to int) []byte {
	b := make([]byte, 0, to-from+1)
	for i := from; i <= to; i++ {
		b = append(b, byte(i))
	}
	return b
}

func TestEncodeVectors(t *testing.T) {
	vectors := []struct {
		name    string
		decoded []byte
		encoded []byte
	}{
		{"empty", []byte{}, []byte{0x01}},
		{"single zero", []byte{0x00}, []byte{0x01, 0x01}},
		{"two zeros", []byte{0x00, 0x00}, []byte{0x01, 0x01, 0x01}},
		{"zero in middle", []byte{0x11, 0x22, 0x00, 0x33}, []byte{0x03, 0x11, 0x22, 0x02, 0x33}},
		{"no zero", []byte{0x11, 0x22, 0x33, 0x44}, []byte{0x05, 0x11, 0x22, 0x33, 0x44}},
		{"trailing zeros", []byte{0x11, 0x00, 0x00, 0x00}, []byte{0x02, 0x11, 0x01, 0x01, 0x01}},
		{"254 bytes", sequence(1, 254), append([]byte{0xFF}, sequence(1, 254)...)},
		{"255 bytes", sequence(1, 255), append(append([]byte{0xFF}, sequence(1, 254)...), 0x02, 0xFF)},
	}
	for _, v := range vectors {
		t.Run(v.name, func(t *testing.T) {
			dst := make([]byte, MaxEncodedLen(len(v.decoded)))
			n, err := Encode(dst, v.decoded)
			require.Nil(t, err)
			assert.Equal(t, v.encoded, dst[:n])
			assert.Equal(t, -1, bytes.IndexByte(dst[:n], 0))

			out := make([]byte, len(v.decoded))
			n, err = Decode(out, v.encoded)
			require.Nil(t, err)
			assert.Equal(t, v.decoded, out[:n])
		})
	}
}

func TestEncodeShortBuffer(t *testing.T) {
	_, err := Encode(make([]byte, 3), []byte{1, 2, 3, 4})
	assert.ErrorIs(t, err, ErrShortBuffer)
	_, err = Encode(nil, nil)
	assert.ErrorIs(t, err, ErrShortBuffer)
}

func TestDecodeErrors(t *testing.T) {
	out := make([]byte, 16)
	_, err := Decode(out, []byte{0x03, 0x11, 0x00})
	assert.ErrorIs(t, err, ErrZeroByte)
	_, err = Decode(out, []byte{0x05, 0x11})
	assert.ErrorIs(t, err, ErrTruncated)
	_, err = Decode(out, []byte{0x00})
	assert.ErrorIs(t, err, ErrZeroByte)
	_, err = Decode(make([]byte, 1), []byte{0x03, 0x11, 0x22})
	assert.ErrorIs(t, err, ErrShortBuffer)
}
