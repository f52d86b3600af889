package sniffer

import (
	"context"
	"fmt"
	"io"
	"time"

	cansniffer "github.com/samsamfire/gocansniffer"
	"github.com/samsamfire/gocansniffer/internal/fifo"
	"github.com/samsamfire/gocansniffer/pkg/busload"
	"github.com/samsamfire/gocansniffer/pkg/command"
	"github.com/samsamfire/gocansniffer/pkg/config"
	"github.com/samsamfire/gocansniffer/pkg/filter"
	"github.com/samsamfire/gocansniffer/pkg/format"
	"github.com/samsamfire/gocansniffer/pkg/indicator"
	"github.com/samsamfire/gocansniffer/pkg/processor"
	"github.com/samsamfire/gocansniffer/pkg/sequence"
	"github.com/samsamfire/gocansniffer/pkg/transport"
	log "github.com/sirupsen/logrus"
)

const (
	Version = "1.0.0"
	// Frames handed to the output per loop pass
	MaxFramesPerPass = 16
	LoopPeriod       = time.Millisecond
)

// Sniffer owns every component of the device and runs the control loop.
// All methods except [Sniffer.Input] writes must be called from the loop goroutine.
type Sniffer struct {
	config       *config.Config
	clock        cansniffer.Clock
	bus          cansniffer.Bus
	out          *transport.Output
	led          *indicator.Led
	queue        *fifo.Fifo[command.Command]
	parser       *command.Parser
	dispatcher   *command.Dispatcher
	filters      *filter.Manager
	scheduler    *sequence.Scheduler
	monitor      *busload.Monitor
	processor    *processor.Processor
	formatter    format.Formatter
	rawFormat    format.Format
	parsedFormat format.Format
	parsing      bool
	started      bool
	startTime    uint32
	lastLoadTick uint32
	frameBuffer  []byte
}

// transmitter flashes the activity led on every transmission
type transmitter struct {
	bus cansniffer.Transmitter
	led cansniffer.Indicator
}

func (t *transmitter) Send(frame cansniffer.Frame) error {
	t.led.FlashTx()
	return t.bus.Send(frame)
}

// NewSniffer builds the device around a connected bus. Received frames are
// dropped until the "can start" command.
// Text and frame dumps are written to out.
func NewSniffer(bus cansniffer.Bus, clock cansniffer.Clock, out io.Writer, cfg *config.Config) (*Sniffer, error) {
	if bus == nil || clock == nil || out == nil {
		return nil, fmt.Errorf("%w: nil bus, clock or output", cansniffer.ErrInvalidParam)
	}
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rawFormat, parsedFormat, err := cfg.Formats()
	if err != nil {
		return nil, err
	}
	s := &Sniffer{
		config:       cfg,
		clock:        clock,
		bus:          bus,
		out:          transport.NewOutput(out, int(cfg.Output.BufferSize)),
		led:          indicator.NewLed(clock, indicator.LogPin("status"), indicator.LogPin("activity")),
		formatter:    format.Formatter{Color: cfg.Output.Color},
		rawFormat:    rawFormat,
		parsedFormat: parsedFormat,
		startTime:    clock.Millis(),
		lastLoadTick: clock.Millis(),
	}
	s.queue = fifo.NewFifo[command.Command](uint16(cfg.Parser.QueueSize))
	if s.parser, err = command.NewParser(s.queue, cfg.Parser.StrictNumbers); err != nil {
		return nil, err
	}
	if s.dispatcher, err = command.NewDispatcher(s.queue, s); err != nil {
		return nil, err
	}
	if s.filters, err = filter.NewManager(bus); err != nil {
		return nil, err
	}
	tx := &transmitter{bus: bus, led: s.led}
	if s.scheduler, err = sequence.NewScheduler(tx, int(cfg.Sequence.MaxSequences), cfg.Sequence.MinIntervalMs); err != nil {
		return nil, err
	}
	calc, err := busload.NewCalculator(clock, cfg.LoadBaudrate())
	if err != nil {
		return nil, err
	}
	if err = calc.SetWindow(cfg.BusLoad.WindowMs); err != nil {
		return nil, err
	}
	s.monitor = busload.NewMonitor(calc, s.out, cfg.BusLoad.ReportIntervalMs)
	if s.processor, err = processor.NewProcessor(clock, uint16(cfg.Processor.QueueSize), s, s.monitor); err != nil {
		return nil, err
	}
	if err = bus.Subscribe(s.processor); err != nil {
		return nil, err
	}
	log.Infof("[SNIFFER] initialized, raw output %v, parsed output %v", rawFormat, parsedFormat)
	return s, nil
}

// Process runs one pass of the control loop
func (s *Sniffer) Process() {
	now := s.clock.Millis()
	if now-s.lastLoadTick >= s.config.BusLoad.TickMs {
		s.lastLoadTick = now
		s.monitor.Update(now)
	}
	s.scheduler.Update(now)
	s.led.Update(now)
	s.dispatcher.Process()
	s.processor.ProcessN(MaxFramesPerPass)
}

// Run calls [Sniffer.Process] every [LoopPeriod] until ctx is done
func (s *Sniffer) Run(ctx context.Context) error {
	ticker := time.NewTicker(LoopPeriod)
	defer ticker.Stop()
	log.Infof("[SNIFFER] control loop running")
	for {
		select {
		case <-ctx.Done():
			s.scheduler.StopAll()
			s.processor.Stop()
			log.Infof("[SNIFFER] control loop stopped")
			return nil
		case <-ticker.C:
			s.Process()
		}
	}
}

// Input returns the writer fed with bytes received from the host.
// It may be written from a different goroutine than the loop.
func (s *Sniffer) Input() io.Writer {
	return input{s}
}

type input struct {
	s *Sniffer
}

func (in input) Write(p []byte) (int, error) {
	for _, b := range p {
		if err := in.s.parser.ProcessByte(b); err != nil {
			in.s.reportError(err)
		}
	}
	return len(p), nil
}

func (s *Sniffer) reportError(err error) {
	s.led.IndicateError(true)
	s.out.Printf("ERROR: %v\r\n", err)
}

// HandleFrame implements [processor.FrameSink], the frame is dumped in the
// selected output format
func (s *Sniffer) HandleFrame(frame *cansniffer.Frame) {
	f := s.rawFormat
	if s.parsing {
		f = s.parsedFormat
	}
	var err error
	s.frameBuffer, err = s.formatter.Append(s.frameBuffer[:0], frame, f)
	if err != nil {
		log.Errorf("[SNIFFER] failed to format frame x%x : %v", frame.ID, err)
		return
	}
	_, _ = s.out.Write(s.frameBuffer)
	s.led.FlashRx()
}

func (s *Sniffer) Parser() *command.Parser {
	return s.parser
}

func (s *Sniffer) Filters() *filter.Manager {
	return s.filters
}

func (s *Sniffer) Scheduler() *sequence.Scheduler {
	return s.scheduler
}

func (s *Sniffer) Monitor() *busload.Monitor {
	return s.monitor
}

func (s *Sniffer) Processor() *processor.Processor {
	return s.processor
}

func (s *Sniffer) Led() *indicator.Led {
	return s.led
}

// Output format currently used for frame dumps
func (s *Sniffer) OutputFormat() format.Format {
	if s.parsing {
		return s.parsedFormat
	}
	return s.rawFormat
}

func (s *Sniffer) IsStarted() bool {
	return s.started
}
