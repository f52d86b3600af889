package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	log "github.com/sirupsen/logrus"
	"go.bug.st/serial"
)

const (
	DefaultBaudrate   = 115200
	serialReadTimeout = 10 * time.Millisecond
)

// Serial is a [Link] over a UART or USB CDC port
type Serial struct {
	port serial.Port
	name string
}

// OpenSerial opens port at baud 8N1
func OpenSerial(port string, baud int) (*Serial, error) {
	if baud <= 0 {
		baud = DefaultBaudrate
	}
	mode := &serial.Mode{
		BaudRate: baud,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(port, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open com port %q : %v", port, err)
	}
	if err := p.SetReadTimeout(serialReadTimeout); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to set read timeout on %q : %v", port, err)
	}
	_ = p.ResetInputBuffer()
	_ = p.ResetOutputBuffer()
	log.Infof("[SERIAL] opened %v at %v baud", port, baud)
	return &Serial{port: p, name: port}, nil
}

// Ports lists the serial ports present on the system
func Ports() ([]string, error) {
	return serial.GetPortsList()
}

func (s *Serial) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

// Read implements [io.Reader], returning 0 bytes on timeout
func (s *Serial) Read(p []byte) (int, error) {
	return s.port.Read(p)
}

// Listen feeds received bytes to sink until ctx is done or the port fails
func (s *Serial) Listen(ctx context.Context, sink io.Writer) error {
	err := readLoop(ctx, s.port, sink)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Errorf("[SERIAL] failed to read %v : %v", s.name, err)
	}
	return err
}

func (s *Serial) Close() error {
	log.Infof("[SERIAL] closing %v", s.name)
	return s.port.Close()
}

// Drain discards pending input for at most d, e.g. before a new session
func (s *Serial) Drain(d time.Duration) {
	buf := make([]byte, readChunkSize)
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		n, err := s.port.Read(buf)
		if err != nil || n == 0 {
			return
		}
	}
}
