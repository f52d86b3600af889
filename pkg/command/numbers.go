package command

import (
	"fmt"

	cansniffer "github.com/samsamfire/gocansniffer"
)

func hexValue(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}

func hasHexPrefix(token string) bool {
	return len(token) > 2 && token[0] == '0' && (token[1] == 'x' || token[1] == 'X')
}

// ParseHex parses a hexadecimal token with an optional 0x prefix.
// ok is false if any character is not a hex digit, in which case value is 0.
// Digits above 32 bits are shifted out.
func ParseHex(token string) (value uint32, ok bool) {
	if hasHexPrefix(token) {
		token = token[2:]
	}
	if token == "" {
		return 0, false
	}
	for i := 0; i < len(token); i++ {
		nibble, valid := hexValue(token[i])
		if !valid {
			return 0, false
		}
		value = value<<4 | uint32(nibble)
	}
	return value, true
}

func parseDecimal(token string) (value uint32, ok bool) {
	if token == "" {
		return 0, false
	}
	for i := 0; i < len(token); i++ {
		c := token[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		next := value*10 + uint32(c-'0')
		if next/10 != value {
			return 0, false
		}
		value = next
	}
	return value, true
}

func isDecimal(token string) bool {
	for i := 0; i < len(token); i++ {
		if token[i] < '0' || token[i] > '9' {
			return false
		}
	}
	return token != ""
}

// parseNumber reads an id, mask or count: 0x prefixed tokens are hex,
// digit only tokens are decimal and anything else is tried as bare hex.
// Invalid tokens yield 0 unless strict is set.
func parseNumber(token string, strict bool) (uint32, error) {
	var value uint32
	var ok bool
	switch {
	case hasHexPrefix(token):
		value, ok = ParseHex(token)
	case isDecimal(token):
		value, ok = parseDecimal(token)
	default:
		value, ok = ParseHex(token)
	}
	if !ok {
		if strict {
			return 0, fmt.Errorf("%w: invalid number %q", cansniffer.ErrInvalidParam, token)
		}
		return 0, nil
	}
	return value, nil
}

func isDataSeparator(c byte) bool {
	return c == ' ' || c == '-' || c == ':'
}

// ParseDataBytes parses hex byte pairs separated by space, dash or colon,
// or written contiguously. A trailing single nibble is padded with zero,
// e.g. "ABC" gives AB C0.
func ParseDataBytes(s string, data *[8]byte) (uint8, error) {
	count := 0
	var pending byte
	nibbles := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isDataSeparator(c) {
			if nibbles == 1 {
				return 0, fmt.Errorf("%w: incomplete byte before separator in %q", cansniffer.ErrInvalidParam, s)
			}
			continue
		}
		nibble, ok := hexValue(c)
		if !ok {
			return 0, fmt.Errorf("%w: invalid hex character %q", cansniffer.ErrParse, c)
		}
		if count >= len(data) {
			return 0, fmt.Errorf("%w: more than %v data bytes", cansniffer.ErrInvalidParam, len(data))
		}
		pending = pending<<4 | nibble
		nibbles++
		if nibbles == 2 {
			data[count] = pending
			count++
			pending = 0
			nibbles = 0
		}
	}
	if nibbles == 1 {
		if count >= len(data) {
			return 0, fmt.Errorf("%w: more than %v data bytes", cansniffer.ErrInvalidParam, len(data))
		}
		data[count] = pending << 4
		count++
	}
	return uint8(count), nil
}
