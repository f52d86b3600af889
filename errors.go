package cansniffer

import "errors"

var (
	ErrInvalidParam      = errors.New("invalid parameter")
	ErrParse             = errors.New("unparseable command")
	ErrQueueFull         = errors.New("queue full")
	ErrResourceExhausted = errors.New("resource exhausted")
	ErrHardware          = errors.New("hardware error")
	ErrNotFound          = errors.New("not found")
	ErrLineOverflow      = errors.New("command line exceeds buffer")
	ErrInvalidState      = errors.New("invalid state for operation")
	ErrBufferTooSmall    = errors.New("destination buffer too small")
	ErrUnsupportedFormat = errors.New("unsupported output format")
	ErrNotConnected      = errors.New("bus not connected")
)
