package command

import cansniffer "github.com/samsamfire/gocansniffer"

// Type identifies a parsed command line
type Type uint8

const (
	Unknown Type = iota
	CanStart
	CanStop
	CanInfo
	FilterAdd
	FilterDelete
	FilterList
	Write
	WriteSequence
	WriteStop
	ReadRaw
	ReadParsed
	BusLoadOn
	BusLoadOff
	BusLoadStatus
)

var typeNames = [...]string{
	Unknown:       "unknown",
	CanStart:      "can start",
	CanStop:       "can stop",
	CanInfo:       "can info",
	FilterAdd:     "filter add",
	FilterDelete:  "filter del",
	FilterList:    "filter list",
	Write:         "write",
	WriteSequence: "write seq",
	WriteStop:     "write stop",
	ReadRaw:       "read raw",
	ReadParsed:    "read parsed",
	BusLoadOn:     "bus load on",
	BusLoadOff:    "bus load off",
	BusLoadStatus: "bus load status",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return typeNames[Unknown]
}

// FilterParams are the arguments of the filter commands.
// A zero Mask selects the default mask of Kind.
type FilterParams struct {
	ID        uint32
	Mask      uint32
	Kind      cansniffer.IDKind
	DeleteAll bool
}

// WriteParams are the arguments of the write commands
type WriteParams struct {
	ID         uint32
	Kind       cansniffer.IDKind
	Data       [8]byte
	Len        uint8
	Count      uint32
	IntervalMs uint32
	StopAll    bool
}

func (w *WriteParams) Payload() []byte {
	return w.Data[:w.Len]
}

// Command is a parsed line, only the parameters matching Type are set
type Command struct {
	Type   Type
	Filter FilterParams
	Write  WriteParams
}
