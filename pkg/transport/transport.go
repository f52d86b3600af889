package transport

import (
	"context"
	"errors"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
)

const readChunkSize = 64

// Link is the byte transport to the host. Received bytes are pushed to
// a sink, usually the command parser.
type Link interface {
	io.Writer
	Listen(ctx context.Context, sink io.Writer) error
	Close() error
}

// Copy received bytes to sink until ctx is done, EOF or a read error.
// Reads returning no data, e.g. on a read timeout, are retried.
func readLoop(ctx context.Context, r io.Reader, sink io.Writer) error {
	buf := make([]byte, readChunkSize)
	for ctx.Err() == nil {
		n, err := r.Read(buf)
		if n > 0 {
			_, _ = sink.Write(buf[:n])
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if os.IsTimeout(err) {
				continue
			}
			return err
		}
	}
	return ctx.Err()
}

// Stream is a [Link] over a plain reader and writer such as stdin/stdout
type Stream struct {
	in  io.Reader
	out io.Writer
}

func NewStream(in io.Reader, out io.Writer) *Stream {
	return &Stream{in: in, out: out}
}

// NewStdio links the process standard input and output
func NewStdio() *Stream {
	return NewStream(os.Stdin, os.Stdout)
}

func (s *Stream) Write(p []byte) (int, error) {
	return s.out.Write(p)
}

// Listen blocks until the input is exhausted or ctx is done.
// A blocked read is not interrupted by ctx.
func (s *Stream) Listen(ctx context.Context, sink io.Writer) error {
	err := readLoop(ctx, s.in, sink)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Errorf("[SERIAL] input closed : %v", err)
	}
	return err
}

func (s *Stream) Close() error {
	if closer, ok := s.in.(io.Closer); ok && s.in != os.Stdin {
		return closer.Close()
	}
	return nil
}
