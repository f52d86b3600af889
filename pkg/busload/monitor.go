package busload

import (
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"
)

const DefaultReportIntervalMs uint32 = 1000

// Monitor gates load accounting behind an on/off switch and periodically
// reports the computed load to an output
type Monitor struct {
	calc             *Calculator
	out              io.Writer
	reportIntervalMs uint32
	lastReport       uint32
	enabled          bool
}

func NewMonitor(calc *Calculator, out io.Writer, reportIntervalMs uint32) *Monitor {
	if reportIntervalMs == 0 {
		reportIntervalMs = DefaultReportIntervalMs
	}
	return &Monitor{calc: calc, out: out, reportIntervalMs: reportIntervalMs}
}

// AddMessage accounts a received frame, only while monitoring
func (m *Monitor) AddMessage(extended bool, dlc uint8, remote bool) {
	if !m.enabled {
		return
	}
	m.calc.AddMessage(extended, dlc, remote)
}

// Update prints a load report once every report interval, while monitoring
func (m *Monitor) Update(now uint32) {
	if !m.enabled {
		return
	}
	if now-m.lastReport < m.reportIntervalMs {
		return
	}
	result := m.calc.CalculateLoad(now)
	m.lastReport = now
	if m.out != nil {
		WriteReport(m.out, result)
	}
}

// Start resets the history and enables accounting
func (m *Monitor) Start(now uint32) {
	m.calc.Reset()
	m.enabled = true
	m.lastReport = now
	log.Infof("[LOAD] bus load monitoring started")
}

func (m *Monitor) Stop() {
	m.enabled = false
	log.Infof("[LOAD] bus load monitoring stopped")
}

func (m *Monitor) IsMonitoring() bool {
	return m.enabled
}

// Load percentage of the last calculation
func (m *Monitor) CurrentLoad() float64 {
	return m.calc.CurrentLoadPercentage()
}

// Status computes a fresh result without waiting for the next report
func (m *Monitor) Status(now uint32) Result {
	return m.calc.CalculateLoad(now)
}

func (m *Monitor) Calculator() *Calculator {
	return m.calc
}

// WriteReport renders a result as a text block
func WriteReport(w io.Writer, result Result) {
	fmt.Fprintf(w,
		"\r\n=== CAN Bus Load ===\r\n"+
			"Load:        %.1f%%\r\n"+
			"Actual rate: %d bps\r\n"+
			"Messages:    %d in window\r\n"+
			"Bits:        %d / %d max\r\n"+
			"Time:        %d ms\r\n"+
			"=====================\r\n",
		result.LoadPercentage,
		result.BitrateActual,
		result.MessageCount,
		result.TotalBits,
		result.MaxPossibleBits,
		result.TimestampMs)
}
