// Package cobs implements Consistent Overhead Byte Stuffing.
//
// Encoding removes every zero byte from a block so that a single 0x00 can
// delimit blocks on a continuous byte stream.
package cobs

import "errors"

var (
	ErrShortBuffer = errors.New("cobs: destination too small")
	ErrZeroByte    = errors.New("cobs: unexpected zero byte in encoded data")
	ErrTruncated   = errors.New("cobs: truncated block")
)

// MaxEncodedLen returns the worst case encoded size of n source bytes
func MaxEncodedLen(n int) int {
	return n + n/254 + 1
}

// Encode stuffs src into dst and returns the number of bytes written.
// The delimiter is not appended.
func Encode(dst, src []byte) (int, error) {
	if len(dst) < 1 {
		return 0, ErrShortBuffer
	}
	codePos := 0
	code := byte(1)
	out := 1
	for i, b := range src {
		if b == 0 {
			dst[codePos] = code
			codePos = out
			if out >= len(dst) {
				return 0, ErrShortBuffer
			}
			out++
			code = 1
			continue
		}
		if out >= len(dst) {
			return 0, ErrShortBuffer
		}
		dst[out] = b
		out++
		code++
		if code == 0xFF && i < len(src)-1 {
			dst[codePos] = code
			codePos = out
			if out >= len(dst) {
				return 0, ErrShortBuffer
			}
			out++
			code = 1
		}
	}
	dst[codePos] = code
	return out, nil
}

// Decode reverses Encode. src must not contain the delimiter.
func Decode(dst, src []byte) (int, error) {
	out := 0
	for in := 0; in < len(src); {
		code := src[in]
		if code == 0 {
			return 0, ErrZeroByte
		}
		in++
		end := in + int(code) - 1
		if end > len(src) {
			return 0, ErrTruncated
		}
		for ; in < end; in++ {
			if src[in] == 0 {
				return 0, ErrZeroByte
			}
			if out >= len(dst) {
				return 0, ErrShortBuffer
			}
			dst[out] = src[in]
			out++
		}
		if code != 0xFF && in < len(src) {
			if out >= len(dst) {
				return 0, ErrShortBuffer
			}
			dst[out] = 0
			out++
		}
	}
	return out, nil
}
