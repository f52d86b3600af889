package busload

import (
	"bytes"
	"testing"

	cansniffer "github.com/samsamfire/gocansniffer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitorGatesAccounting(t *testing.T) {
	clock := &cansniffer.ManualClock{}
	calc, err := NewCalculator(clock, 500000)
	require.Nil(t, err)
	out := &bytes.Buffer{}
	monitor := NewMonitor(calc, out, 1000)

	monitor.AddMessage(false, 8, false)
	assert.Equal(t, 0, calc.Len())
	assert.False(t, monitor.IsMonitoring())

	monitor.Start(0)
	assert.True(t, monitor.IsMonitoring())
	monitor.AddMessage(false, 8, false)
	assert.Equal(t, 1, calc.Len())

	monitor.Stop()
	monitor.AddMessage(false, 8, false)
	assert.Equal(t, 1, calc.Len())
}

func TestMonitorReportsPeriodically(t *testing.T) {
	clock := &cansniffer.ManualClock{}
	calc, _ := NewCalculator(clock, 500000)
	out := &bytes.Buffer{}
	monitor := NewMonitor(calc, out, 1000)
	monitor.Start(0)
	clock.Set(100)
	monitor.AddMessage(false, 2, false)

	monitor.Update(500)
	assert.Zero(t, out.Len())
	monitor.Update(1000)
	assert.Contains(t, out.String(), "=== CAN Bus Load ===")
	assert.Contains(t, out.String(), "Messages:    1 in window")
	out.Reset()
	monitor.Update(1500)
	assert.Zero(t, out.Len())
	monitor.Update(2000)
	assert.Contains(t, out.String(), "Messages:    0 in window")
	assert.InDelta(t, 0, monitor.CurrentLoad(), 0.001)
}

func TestMonitorStartResetsHistory(t *testing.T) {
	clock := &cansniffer.ManualClock{}
	calc, _ := NewCalculator(clock, 500000)
	monitor := NewMonitor(calc, nil, 0)
	monitor.Start(0)
	monitor.AddMessage(true, 8, false)
	monitor.Start(10)
	assert.Equal(t, 0, calc.Len())
	result := monitor.Status(10)
	assert.EqualValues(t, 0, result.MessageCount)
}
