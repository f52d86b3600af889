package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	cansniffer "github.com/samsamfire/gocansniffer"
	"github.com/samsamfire/gocansniffer/pkg/capture"
	"github.com/samsamfire/gocansniffer/pkg/format"
	log "github.com/sirupsen/logrus"
)

// Longest partial datagram kept while waiting for its delimiter
const maxPending = 4096

// inspector decodes the device output stream. Framed datagrams are decoded
// into frames, any other text from the device is passed through.
type inspector struct {
	mu          sync.Mutex
	out         io.Writer
	link        io.Writer
	formatter   format.Formatter
	start       time.Time
	pending     []byte
	raw         [format.MaxFramedLen]byte
	monitoring  bool
	capture     *capture.Writer
	captureFile io.Closer
	frameCount  uint64
	textCount   uint64
	errorCount  uint64
}

func newInspector(out io.Writer, link io.Writer) *inspector {
	return &inspector{
		out:        out,
		link:       link,
		formatter:  format.Formatter{Color: true},
		start:      time.Now(),
		monitoring: true,
	}
}

// Write implements [io.Writer], it is fed with the bytes received from the device
func (in *inspector) Write(p []byte) (int, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.pending = append(in.pending, p...)
	for {
		advance, token, _ := format.ScanFrames(in.pending, false)
		if advance == 0 {
			break
		}
		if token != nil {
			in.handleDatagram(token)
		}
		in.pending = in.pending[advance:]
	}
	// Complete text lines are not followed by a delimiter
	if isText(in.pending) && bytes.HasSuffix(in.pending, []byte("\r\n")) {
		in.printText(in.pending)
		in.pending = in.pending[:0]
	}
	if len(in.pending) > maxPending {
		in.errorCount++
		log.Warnf("[INSPECT] dropping %v bytes without delimiter", len(in.pending))
		in.pending = in.pending[:0]
	}
	// Avoid growing the backing array forever
	in.pending = append([]byte(nil), in.pending...)
	return len(p), nil
}

func isText(p []byte) bool {
	for _, b := range p {
		if (b < 0x20 || b > 0x7E) && b != '\r' && b != '\n' && b != '\t' {
			return false
		}
	}
	return true
}

func (in *inspector) decode(datagram []byte) (cansniffer.Frame, error) {
	n, err := format.Unframe(in.raw[:], datagram)
	if err != nil {
		return cansniffer.Frame{}, err
	}
	return format.DecodeRaw(in.raw[:n])
}

// split separates device text preceding a framed datagram
func (in *inspector) split(token []byte) (text []byte, frame cansniffer.Frame, ok bool) {
	if frame, err := in.decode(token); err == nil {
		return nil, frame, true
	}
	for i, b := range token {
		if b != '\n' {
			continue
		}
		if frame, err := in.decode(token[i+1:]); err == nil {
			return token[:i+1], frame, true
		}
	}
	return token, cansniffer.Frame{}, false
}

func (in *inspector) handleDatagram(token []byte) {
	text, frame, ok := in.split(token)
	if !ok && !isText(token) {
		in.errorCount++
		log.Debugf("[INSPECT] undecodable datagram % X", token)
		return
	}
	if len(text) > 0 {
		in.printText(text)
	}
	if ok {
		in.handleFrame(frame)
	}
}

func (in *inspector) printText(text []byte) {
	in.textCount++
	_, _ = in.out.Write(text)
}

func (in *inspector) handleFrame(frame cansniffer.Frame) {
	in.frameCount++
	frame.Timestamp = uint32(time.Since(in.start).Milliseconds())
	if in.capture != nil {
		err := in.capture.Write(capture.Record{Received: time.Now(), Frame: frame})
		if err != nil {
			log.Errorf("[INSPECT] capture failed, stopping : %v", err)
			in.stopCapture()
		}
	}
	if in.monitoring {
		_, _ = in.out.Write(in.formatter.AppendConsole(nil, &frame))
	}
}

func (in *inspector) setMonitoring(enabled bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.monitoring = enabled
}

// Send writes a command line to the device
func (in *inspector) Send(line string) error {
	_, err := io.WriteString(in.link, line+"\r\n")
	return err
}

func (in *inspector) StartCapture(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	writer, err := capture.NewWriter(file)
	if err != nil {
		file.Close()
		return err
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	in.stopCapture()
	in.capture = writer
	in.captureFile = file
	log.Infof("[INSPECT] capturing to %v", path)
	return nil
}

// StopCapture closes the current capture and returns the number of records written
func (in *inspector) StopCapture() uint64 {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.stopCapture()
}

func (in *inspector) stopCapture() uint64 {
	if in.capture == nil {
		return 0
	}
	count := in.capture.Count()
	if err := in.captureFile.Close(); err != nil {
		log.Errorf("[INSPECT] failed to close capture : %v", err)
	}
	in.capture = nil
	in.captureFile = nil
	return count
}

// Replay prints the frames of a capture. When send is set, data frames with
// a payload are also transmitted through the device respecting the original
// spacing, gaps are capped to maxGap. The device picks the identifier kind
// from its magnitude.
func (in *inspector) Replay(r io.Reader, send bool, maxGap time.Duration) (int, error) {
	reader, err := capture.NewReader(r)
	if err != nil {
		return 0, err
	}
	count := 0
	var previous time.Time
	for {
		record, err := reader.Next()
		if err == io.EOF {
			return count, nil
		}
		if err != nil {
			return count, err
		}
		count++
		in.mu.Lock()
		_, _ = in.out.Write(in.formatter.AppendConsole(nil, &record.Frame))
		in.mu.Unlock()
		if !send || record.Frame.Remote || record.Frame.DLC == 0 {
			continue
		}
		if !previous.IsZero() {
			gap := record.Received.Sub(previous)
			if gap > maxGap {
				gap = maxGap
			}
			if gap > 0 {
				time.Sleep(gap)
			}
		}
		previous = record.Received
		if err := in.Send(writeCommand(&record.Frame)); err != nil {
			return count, err
		}
	}
}

// writeCommand renders a data frame as a device write command
func writeCommand(frame *cansniffer.Frame) string {
	return fmt.Sprintf("write 0x%X %X", frame.ID, frame.Payload())
}

type stats struct {
	Frames uint64
	Texts  uint64
	Errors uint64
}

func (in *inspector) Stats() stats {
	in.mu.Lock()
	defer in.mu.Unlock()
	return stats{Frames: in.frameCount, Texts: in.textCount, Errors: in.errorCount}
}
