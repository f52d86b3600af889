package command

import (
	"fmt"

	cansniffer "github.com/samsamfire/gocansniffer"
	"github.com/samsamfire/gocansniffer/internal/fifo"
	log "github.com/sirupsen/logrus"
)

// Handler receives one call per dispatched command
type Handler interface {
	CanStart()
	CanStop()
	CanInfo()
	FilterAdd(params FilterParams)
	FilterDelete(params FilterParams)
	FilterList()
	Write(params WriteParams)
	WriteSequence(params WriteParams)
	WriteStop(params WriteParams)
	ReadRaw()
	ReadParsed()
	BusLoadMonitor(enabled bool)
	BusLoadStatus()
}

// Dispatcher is the single consumer of the command queue
type Dispatcher struct {
	queue           *fifo.Fifo[Command]
	handler         Handler
	dispatchedCount uint32
}

func NewDispatcher(queue *fifo.Fifo[Command], handler Handler) (*Dispatcher, error) {
	if queue == nil || handler == nil {
		return nil, fmt.Errorf("%w: nil queue or handler", cansniffer.ErrInvalidParam)
	}
	return &Dispatcher{queue: queue, handler: handler}, nil
}

// Process dispatches the commands queued when called and returns how many
// were handled. Commands pushed meanwhile wait for the next call.
func (d *Dispatcher) Process() int {
	pending := d.queue.Len()
	handled := 0
	for ; handled < pending; handled++ {
		cmd, ok := d.queue.Pop()
		if !ok {
			break
		}
		d.Dispatch(cmd)
	}
	return handled
}

// Dispatch invokes the handler method matching the command type
func (d *Dispatcher) Dispatch(cmd Command) {
	log.Debugf("[CMD] dispatching %v", cmd.Type)
	d.dispatchedCount++
	switch cmd.Type {
	case CanStart:
		d.handler.CanStart()
	case CanStop:
		d.handler.CanStop()
	case CanInfo:
		d.handler.CanInfo()
	case FilterAdd:
		d.handler.FilterAdd(cmd.Filter)
	case FilterDelete:
		d.handler.FilterDelete(cmd.Filter)
	case FilterList:
		d.handler.FilterList()
	case Write:
		d.handler.Write(cmd.Write)
	case WriteSequence:
		d.handler.WriteSequence(cmd.Write)
	case WriteStop:
		d.handler.WriteStop(cmd.Write)
	case ReadRaw:
		d.handler.ReadRaw()
	case ReadParsed:
		d.handler.ReadParsed()
	case BusLoadOn:
		d.handler.BusLoadMonitor(true)
	case BusLoadOff:
		d.handler.BusLoadMonitor(false)
	case BusLoadStatus:
		d.handler.BusLoadStatus()
	default:
		d.dispatchedCount--
		log.Warnf("[CMD] no handler for command type %v", cmd.Type)
	}
}

// Number of commands handed to the handler
func (d *Dispatcher) DispatchedCount() uint32 {
	return d.dispatchedCount
}
