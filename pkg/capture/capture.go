// Package capture stores received frames as a sequence of CBOR items.
// A capture starts with a header item followed by one item per frame.
package capture

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
	cansniffer "github.com/samsamfire/gocansniffer"
)

const (
	Magic   = "gocansniffer-capture"
	Version = 1
)

var ErrBadCapture = errors.New("not a capture file")

// Record is one frame as seen by the host
type Record struct {
	Received time.Time
	Frame    cansniffer.Frame
}

type header struct {
	Magic   string `cbor:"1,keyasint"`
	Version uint   `cbor:"2,keyasint"`
	Created int64  `cbor:"3,keyasint"`
}

type record struct {
	_        struct{} `cbor:",toarray"`
	Received int64
	Tick     uint32
	ID       uint32
	Extended bool
	Remote   bool
	DLC      uint8
	Data     []byte
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	decMode, err = cbor.DecOptions{MaxArrayElements: 16}.DecMode()
	if err != nil {
		panic(err)
	}
}

type Writer struct {
	encoder *cbor.Encoder
	count   uint64
}

// NewWriter writes the capture header and returns a writer for records
func NewWriter(w io.Writer) (*Writer, error) {
	encoder := encMode.NewEncoder(w)
	err := encoder.Encode(header{Magic: Magic, Version: Version, Created: time.Now().UnixNano()})
	if err != nil {
		return nil, err
	}
	return &Writer{encoder: encoder}, nil
}

func (w *Writer) Write(r Record) error {
	if err := r.Frame.Validate(); err != nil {
		return err
	}
	err := w.encoder.Encode(record{
		Received: r.Received.UnixNano(),
		Tick:     r.Frame.Timestamp,
		ID:       r.Frame.ID,
		Extended: r.Frame.IsExtended(),
		Remote:   r.Frame.Remote,
		DLC:      r.Frame.DLC,
		Data:     r.Frame.Payload(),
	})
	if err != nil {
		return err
	}
	w.count++
	return nil
}

// Number of records written
func (w *Writer) Count() uint64 {
	return w.count
}

type Reader struct {
	decoder *cbor.Decoder
	created time.Time
}

// NewReader checks the capture header
func NewReader(r io.Reader) (*Reader, error) {
	decoder := decMode.NewDecoder(r)
	var h header
	if err := decoder.Decode(&h); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadCapture, err)
	}
	if h.Magic != Magic {
		return nil, fmt.Errorf("%w: magic %q", ErrBadCapture, h.Magic)
	}
	if h.Version != Version {
		return nil, fmt.Errorf("%w: version %v", ErrBadCapture, h.Version)
	}
	return &Reader{decoder: decoder, created: time.Unix(0, h.Created)}, nil
}

// Time at which the capture was started
func (r *Reader) Created() time.Time {
	return r.created
}

// Next returns the next record, io.EOF at the end of the capture
func (r *Reader) Next() (Record, error) {
	var raw record
	if err := r.decoder.Decode(&raw); err != nil {
		return Record{}, err
	}
	kind := cansniffer.Standard
	if raw.Extended {
		kind = cansniffer.Extended
	}
	var frame cansniffer.Frame
	if raw.Remote {
		frame = cansniffer.NewRemoteFrame(raw.ID, kind, raw.DLC)
	} else {
		if int(raw.DLC) != len(raw.Data) {
			return Record{}, fmt.Errorf("%w: dlc %v with %v data bytes", ErrBadCapture, raw.DLC, len(raw.Data))
		}
		frame = cansniffer.NewFrame(raw.ID, kind, raw.Data)
	}
	frame.Timestamp = raw.Tick
	if err := frame.Validate(); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrBadCapture, err)
	}
	return Record{Received: time.Unix(0, raw.Received), Frame: frame}, nil
}
