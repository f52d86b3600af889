package sniffer

import (
	"errors"
	"fmt"

	cansniffer "github.com/samsamfire/gocansniffer"
	"github.com/samsamfire/gocansniffer/pkg/command"
	"github.com/samsamfire/gocansniffer/pkg/filter"
	log "github.com/sirupsen/logrus"
)

// Command handlers, called by the dispatcher from the control loop

// CanStart enables reception, the bus itself stays connected for the whole
// lifetime of the sniffer
func (s *Sniffer) CanStart() {
	s.led.FlashCommand()
	s.processor.Start()
	s.started = true
	s.led.IndicateStarted(true)
	s.out.Printf("CAN started\r\n")
}

func (s *Sniffer) CanStop() {
	s.led.FlashCommand()
	s.processor.Stop()
	s.started = false
	s.led.IndicateStarted(false)
	s.out.Printf("CAN stopped\r\n")
}

func (s *Sniffer) CanInfo() {
	s.led.FlashCommand()
	uptime := (s.clock.Millis() - s.startTime) / 1000
	state := "STOPPED"
	if s.started {
		state = "ACTIVE"
	}
	fmt.Fprintf(s.out, "\r\n"+
		"========================================\r\n"+
		"          CAN SNIFFER SYSTEM INFO       \r\n"+
		"========================================\r\n\r\n"+
		"AVAILABLE COMMANDS:\r\n"+
		"  can start       - Start CAN interface\r\n"+
		"  can stop        - Stop CAN interface\r\n"+
		"  can info        - This information\r\n"+
		"  filter add <id> [mask] [type] - Add filter\r\n"+
		"  filter del <id|all> - Delete filter\r\n"+
		"  filter list     - List active filters\r\n"+
		"  write <id> <data> - Send CAN message\r\n"+
		"  write seq <id> <data> <count> <interval_ms>\r\n"+
		"  write stop <id|all> - Stop sequence\r\n"+
		"  read raw        - Raw message monitoring\r\n"+
		"  read parsed     - Parsed message monitoring\r\n"+
		"  bus load on     - Start bus load monitoring\r\n"+
		"  bus load off    - Stop bus load monitoring\r\n"+
		"  bus load status - Show current bus load\r\n\r\n"+
		"DATA FORMATS:\r\n"+
		"  ID:            decimal or 0xhex (0x100)\r\n"+
		"  Data:          hex bytes (01 A2 FF or 01A2FF)\r\n"+
		"  Filter type:   std (11-bit) or ext (29-bit)\r\n"+
		"  Mask:          hex value (0x7F0 for range)\r\n\r\n"+
		"EXAMPLES:\r\n"+
		"  can start\r\n"+
		"  filter add 0x100 0x7F0 std\r\n"+
		"  write 0x123 01 02 03 04\r\n"+
		"  write seq 0x200 AABB 10 100\r\n"+
		"  read raw\r\n\r\n"+
		"SYSTEM INFO:\r\n"+
		"  Version:       %s\r\n"+
		"  Uptime:        %d s\r\n"+
		"  State:         %s\r\n"+
		"  Output:        %v\r\n"+
		"  Bitrate:       %d\r\n"+
		"  Frames:        %d received, %d processed, %d dropped, %d invalid\r\n"+
		"  Commands:      %d accepted, %d rejected\r\n"+
		"  Filters:       %d/%d\r\n"+
		"  Sequences:     %d/%d\r\n"+
		"========================================\r\n\r\n",
		Version,
		uptime,
		state,
		s.OutputFormat(),
		s.config.CAN.Bitrate,
		s.processor.ReceivedCount(), s.processor.ProcessedCount(), s.processor.DroppedCount(), s.processor.ErrorCount(),
		s.parser.ProcessedCount(), s.parser.ErrorCount(),
		s.filters.ActiveCount(), filter.MaxFilters,
		s.scheduler.ActiveCount(), s.scheduler.Capacity(),
	)
}

func (s *Sniffer) FilterAdd(params command.FilterParams) {
	entry, err := s.filters.Add(params.ID, params.Mask, params.Kind)
	if err != nil {
		s.led.IndicateError(true)
		s.out.Printf("ERROR: Failed to add filter: %v\r\n", err)
		s.out.Printf("Available filters: %d/%d\r\n", s.filters.FreeCount(), s.filters.TotalCount())
		return
	}
	s.led.FlashCommand()
	s.out.Printf("OK: filter 0x%X mask 0x%X %v in bank %d slot %d\r\n", entry.ID, entry.Mask, entry.Kind, entry.Bank, entry.Slot)
}

func (s *Sniffer) FilterDelete(params command.FilterParams) {
	s.led.FlashCommand()
	if params.DeleteAll {
		if err := s.filters.RemoveAll(); err != nil {
			s.out.Printf("WARNING: Some filters failed to disable\r\n")
		}
		s.out.Printf("All filters removed\r\n")
		return
	}
	if err := s.filters.Remove(params.ID); err != nil {
		s.out.Printf("ERROR: Filter 0x%08X not found\r\n", params.ID)
		return
	}
	s.out.Printf("Filter 0x%08X removed\r\n", params.ID)
}

func (s *Sniffer) FilterList() {
	s.led.FlashCommand()
	s.filters.WriteList(s.out)
}

func (s *Sniffer) Write(params command.WriteParams) {
	frame := cansniffer.NewFrame(params.ID, cansniffer.KindForID(params.ID), params.Payload())
	s.led.FlashTx()
	if err := s.bus.Send(frame); err != nil {
		log.Errorf("[SNIFFER] failed to send x%x : %v", params.ID, err)
		s.reportError(fmt.Errorf("%w: send 0x%X: %v", cansniffer.ErrHardware, params.ID, err))
	}
}

func (s *Sniffer) WriteSequence(params command.WriteParams) {
	s.led.FlashCommand()
	_, err := s.scheduler.Start(params.ID, params.Payload(), params.Count, params.IntervalMs)
	if err != nil {
		if errors.Is(err, cansniffer.ErrResourceExhausted) {
			s.out.Printf("ERROR: Failed to start sequence (max %d)\r\n", s.scheduler.Capacity())
		} else {
			s.out.Printf("ERROR: Failed to start sequence: %v\r\n", err)
		}
		return
	}
	s.out.Printf("Sequence started successfully. Active: %d\r\n", s.scheduler.ActiveCount())
}

func (s *Sniffer) WriteStop(params command.WriteParams) {
	s.led.FlashCommand()
	if params.StopAll {
		s.out.Printf("All sequences stopped (%d)\r\n", s.scheduler.StopAll())
		return
	}
	if err := s.scheduler.Stop(params.ID); err != nil {
		s.out.Printf("ERROR: Sequence 0x%X not found\r\n", params.ID)
		return
	}
	s.out.Printf("Sequence 0x%X stopped\r\n", params.ID)
}

func (s *Sniffer) ReadRaw() {
	s.led.FlashCommand()
	s.parsing = false
}

func (s *Sniffer) ReadParsed() {
	s.led.FlashCommand()
	s.parsing = true
}

func (s *Sniffer) BusLoadMonitor(enabled bool) {
	s.led.FlashCommand()
	if enabled {
		s.monitor.Start(s.clock.Millis())
		s.out.Printf("Bus load monitoring started\r\n")
		return
	}
	s.monitor.Stop()
	s.out.Printf("Bus load monitoring stopped\r\n")
}

func (s *Sniffer) BusLoadStatus() {
	s.led.FlashCommand()
	result := s.monitor.Status(s.clock.Millis())
	s.out.Printf("Current CAN bus load: %.1f%% (%d msgs, %d bps)\r\n", result.LoadPercentage, result.MessageCount, result.BitrateActual)
}
