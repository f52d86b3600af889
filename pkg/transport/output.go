package transport

import (
	"fmt"
	"io"
	"sync"

	log "github.com/sirupsen/logrus"
)

const DefaultOutputBufferSize = 256

// Output is a best effort sink for user visible text and frame dumps.
// Write errors are counted and logged, never returned.
type Output struct {
	mu             sync.Mutex
	w              io.Writer
	buffer         []byte
	writeErrors    uint32
	truncatedCount uint32
}

// NewOutput creates an output whose formatted messages are cut to bufferSize bytes
func NewOutput(w io.Writer, bufferSize int) *Output {
	if bufferSize <= 0 {
		bufferSize = DefaultOutputBufferSize
	}
	return &Output{w: w, buffer: make([]byte, 0, bufferSize)}
}

// Printf formats a message and writes at most the buffer size of it
func (o *Output) Printf(format string, args ...any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	message := fmt.Appendf(o.buffer[:0], format, args...)
	if len(message) > cap(o.buffer) {
		message = message[:cap(o.buffer)]
		o.truncatedCount++
	}
	o.write(message)
}

// Write implements [io.Writer] for multi line renderings, p is written as is.
// It always reports success.
func (o *Output) Write(p []byte) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.write(p)
	return len(p), nil
}

func (o *Output) write(p []byte) {
	if len(p) == 0 {
		return
	}
	n, err := o.w.Write(p)
	if err == nil && n != len(p) {
		err = io.ErrShortWrite
	}
	if err != nil {
		o.writeErrors++
		log.Debugf("[SERIAL] output dropped %v bytes : %v", len(p)-n, err)
	}
}

func (o *Output) WriteErrors() uint32 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.writeErrors
}

// Number of messages cut by Printf
func (o *Output) TruncatedCount() uint32 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.truncatedCount
}
