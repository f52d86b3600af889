package processor

import (
	"fmt"
	"sync/atomic"

	cansniffer "github.com/samsamfire/gocansniffer"
	"github.com/samsamfire/gocansniffer/internal/fifo"
	log "github.com/sirupsen/logrus"
)

const DefaultQueueSize = 64

type State uint32

const (
	StateIdle State = iota
	StateRunning
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRunning:
		return "RUNNING"
	case StatePaused:
		return "PAUSED"
	default:
		return "UNKNOWN"
	}
}

// FrameSink consumes validated frames, e.g. for output formatting
type FrameSink interface {
	HandleFrame(frame *cansniffer.Frame)
}

// LoadRecorder accounts frames for bus load estimation
type LoadRecorder interface {
	AddMessage(extended bool, dlc uint8, remote bool)
}

// Processor moves received frames from the bus callback to the control loop.
// [Processor.Handle] is the producer side and may run on the bus reception
// goroutine, [Processor.Process] is the consumer side.
type Processor struct {
	queue          *fifo.Fifo[cansniffer.Frame]
	clock          cansniffer.Clock
	sink           FrameSink
	load           LoadRecorder
	state          atomic.Uint32
	receivedCount  atomic.Uint32
	droppedCount   atomic.Uint32
	processedCount uint32
	errorCount     uint32
}

// NewProcessor creates an idle processor. sink and load may be nil.
func NewProcessor(clock cansniffer.Clock, queueSize uint16, sink FrameSink, load LoadRecorder) (*Processor, error) {
	if clock == nil {
		return nil, fmt.Errorf("%w: nil clock", cansniffer.ErrInvalidParam)
	}
	if queueSize == 0 {
		return nil, fmt.Errorf("%w: queue size 0", cansniffer.ErrInvalidParam)
	}
	return &Processor{
		queue: fifo.NewFifo[cansniffer.Frame](queueSize),
		clock: clock,
		sink:  sink,
		load:  load,
	}, nil
}

// Handle implements [cansniffer.FrameListener]. The frame is timestamped and
// queued, it is dropped when idle or when the queue is full.
func (p *Processor) Handle(frame cansniffer.Frame) {
	if p.State() == StateIdle {
		return
	}
	frame.Timestamp = p.clock.Millis()
	p.receivedCount.Add(1)
	if !p.queue.Push(frame) {
		p.droppedCount.Add(1)
	}
}

// Process handles at most one queued frame and reports whether one was
// dequeued. Nothing is dequeued unless running.
func (p *Processor) Process() bool {
	if p.State() != StateRunning {
		return false
	}
	frame, ok := p.queue.Pop()
	if !ok {
		return false
	}
	if err := frame.Validate(); err != nil {
		p.errorCount++
		log.Debugf("[PROC] invalid frame dropped : %v", err)
		return true
	}
	if p.sink != nil {
		p.sink.HandleFrame(&frame)
	}
	if p.load != nil {
		p.load.AddMessage(frame.IsExtended(), frame.DLC, frame.Remote)
	}
	p.processedCount++
	return true
}

// ProcessN calls [Processor.Process] until the queue is empty or limit frames
// were handled. It returns the number of frames dequeued.
func (p *Processor) ProcessN(limit int) int {
	handled := 0
	for handled < limit && p.Process() {
		handled++
	}
	return handled
}

func (p *Processor) Start() {
	p.setState(StateRunning)
}

// Stop returns to idle and discards queued frames
func (p *Processor) Stop() {
	p.setState(StateIdle)
	for {
		if _, ok := p.queue.Pop(); !ok {
			break
		}
	}
}

// Pause keeps queuing frames without processing them
func (p *Processor) Pause() error {
	if p.State() != StateRunning {
		return fmt.Errorf("%w: cannot pause from %v", cansniffer.ErrInvalidState, p.State())
	}
	p.setState(StatePaused)
	return nil
}

func (p *Processor) Resume() error {
	if p.State() != StatePaused {
		return fmt.Errorf("%w: cannot resume from %v", cansniffer.ErrInvalidState, p.State())
	}
	p.setState(StateRunning)
	return nil
}

func (p *Processor) State() State {
	return State(p.state.Load())
}

func (p *Processor) setState(state State) {
	previous := State(p.state.Swap(uint32(state)))
	if previous != state {
		log.Debugf("[PROC] state %v => %v", previous, state)
	}
}

// Number of frames waiting in the queue
func (p *Processor) Pending() int {
	return p.queue.Len()
}

func (p *Processor) ProcessedCount() uint32 {
	return p.processedCount
}

func (p *Processor) ErrorCount() uint32 {
	return p.errorCount
}

func (p *Processor) ReceivedCount() uint32 {
	return p.receivedCount.Load()
}

func (p *Processor) DroppedCount() uint32 {
	return p.droppedCount.Load()
}
