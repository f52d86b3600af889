package indicator

import (
	"testing"

	cansniffer "github.com/samsamfire/gocansniffer"
	"github.com/stretchr/testify/assert"
)

type recordingPin struct {
	on      bool
	changes int
}

func (p *recordingPin) Set(on bool) {
	if on != p.on {
		p.changes++
	}
	p.on = on
}

func newTestLed() (*Led, *cansniffer.ManualClock, *recordingPin, *recordingPin) {
	clock := &cansniffer.ManualClock{}
	status := &recordingPin{}
	activity := &recordingPin{}
	return NewLed(clock, status, activity), clock, status, activity
}

func run(led *Led, clock *cansniffer.ManualClock, until uint32) {
	for clock.Millis() < until {
		led.Update(clock.Advance(10))
	}
}

func TestLedImplementsIndicator(t *testing.T) {
	var _ cansniffer.Indicator = &Led{}
}

func TestSlowBlink(t *testing.T) {
	led, clock, status, _ := newTestLed()
	led.IndicateStarted(true)
	assert.True(t, status.on)
	run(led, clock, 490)
	assert.True(t, status.on)
	run(led, clock, 500)
	assert.False(t, status.on)
	run(led, clock, 1000)
	assert.True(t, status.on)

	led.IndicateStarted(false)
	assert.Equal(t, Off, led.Status())
	changes := status.changes
	run(led, clock, 3000)
	assert.False(t, status.on)
	assert.Equal(t, changes, status.changes)
}

func TestFastBlink(t *testing.T) {
	led, clock, status, _ := newTestLed()
	led.SetStatus(FastBlink)
	run(led, clock, 1000)
	// One toggle every 100 ms
	assert.Equal(t, 11, status.changes)
}

func TestErrorPattern(t *testing.T) {
	led, clock, status, _ := newTestLed()
	led.IndicateError(true)
	assert.Equal(t, Error, led.Status())
	// on at 0, three off transitions at 100, 300, 500
	run(led, clock, 500)
	assert.False(t, status.on)
	changes := status.changes
	run(led, clock, 1490)
	assert.Equal(t, changes, status.changes)
	run(led, clock, 1500)
	assert.True(t, status.on)

	led.IndicateError(false)
	assert.Equal(t, Off, led.Status())
	led.IndicateStarted(true)
	led.IndicateError(true)
	led.IndicateError(false)
	assert.Equal(t, SlowBlink, led.Status())
}

func TestActivityFlash(t *testing.T) {
	led, clock, _, activity := newTestLed()
	led.FlashRx()
	assert.True(t, activity.on)
	run(led, clock, 40)
	assert.True(t, activity.on)
	run(led, clock, 50)
	assert.False(t, activity.on)

	led.FlashCommand()
	led.FlashTx()
	run(led, clock, 120)
	assert.True(t, activity.on)
	run(led, clock, 150)
	assert.False(t, activity.on)
}
