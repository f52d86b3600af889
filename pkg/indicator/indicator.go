package indicator

import (
	"sync"

	cansniffer "github.com/samsamfire/gocansniffer"
	log "github.com/sirupsen/logrus"
)

// Timings in ms
const (
	SlowBlinkPeriod  = 500
	FastBlinkPeriod  = 100
	ErrorBlinkPeriod = 100
	ErrorBlinkCount  = 3
	ErrorPause       = 1000
	RxTxFlash        = 50
	CommandFlash     = 100
)

// Pin drives a single LED
type Pin interface {
	Set(on bool)
}

// PinFunc adapts a function to [Pin]
type PinFunc func(on bool)

func (f PinFunc) Set(on bool) {
	f(on)
}

// LogPin reports LED changes at debug level
type LogPin string

func (p LogPin) Set(on bool) {
	log.Debugf("[LED] %v => %v", string(p), on)
}

type Status uint8

const (
	Off Status = iota
	On
	SlowBlink
	FastBlink
	Error // bursts of fast blinks separated by a pause
)

// Led drives a status LED and an activity LED.
// Status patterns and activity flashes advance on [Led.Update].
type Led struct {
	mu          sync.Mutex
	clock       cansniffer.Clock
	statusPin   Pin
	activityPin Pin
	status      Status
	statusOn    bool
	lastToggle  uint32
	blinks      uint8
	paused      bool
	activityOn  bool
	activityEnd uint32
	started     bool
}

func NewLed(clock cansniffer.Clock, statusPin Pin, activityPin Pin) *Led {
	led := &Led{clock: clock, statusPin: statusPin, activityPin: activityPin}
	led.setStatusPin(false)
	led.setActivityPin(false)
	return led
}

// Update advances the blink patterns and ends expired flashes
func (l *Led) Update(now uint32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	elapsed := now - l.lastToggle
	switch l.status {
	case SlowBlink:
		if elapsed >= SlowBlinkPeriod {
			l.toggle(now)
		}
	case FastBlink:
		if elapsed >= FastBlinkPeriod {
			l.toggle(now)
		}
	case Error:
		if l.paused {
			if elapsed >= ErrorPause {
				l.paused = false
				l.toggle(now)
			}
			break
		}
		if elapsed >= ErrorBlinkPeriod {
			l.toggle(now)
			if !l.statusOn {
				l.blinks++
				if l.blinks >= ErrorBlinkCount {
					l.blinks = 0
					l.paused = true
				}
			}
		}
	}
	if l.activityOn && int32(now-l.activityEnd) >= 0 {
		l.setActivityPin(false)
	}
}

func (l *Led) toggle(now uint32) {
	l.setStatusPin(!l.statusOn)
	l.lastToggle = now
}

// SetStatus selects the status LED pattern, blinking starts with the LED on
func (l *Led) SetStatus(status Status) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.setStatus(status)
}

func (l *Led) setStatus(status Status) {
	l.status = status
	l.lastToggle = l.clock.Millis()
	l.blinks = 0
	l.paused = false
	l.setStatusPin(status != Off)
}

func (l *Led) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}

func (l *Led) IndicateStarted(started bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.started = started
	if started {
		l.setStatus(SlowBlink)
	} else {
		l.setStatus(Off)
	}
}

// IndicateError switches to the error pattern, clearing it returns to the
// pattern matching the started state
func (l *Led) IndicateError(hasError bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch {
	case hasError:
		l.setStatus(Error)
	case l.started:
		l.setStatus(SlowBlink)
	default:
		l.setStatus(Off)
	}
}

func (l *Led) FlashRx() {
	l.flash(RxTxFlash)
}

func (l *Led) FlashTx() {
	l.flash(RxTxFlash)
}

func (l *Led) FlashCommand() {
	l.flash(CommandFlash)
}

func (l *Led) flash(duration uint32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	end := l.clock.Millis() + duration
	// A longer flash in progress is not shortened
	if l.activityOn && int32(l.activityEnd-end) > 0 {
		return
	}
	l.activityEnd = end
	l.setActivityPin(true)
}

func (l *Led) setStatusPin(on bool) {
	l.statusOn = on
	if l.statusPin != nil {
		l.statusPin.Set(on)
	}
}

func (l *Led) setActivityPin(on bool) {
	l.activityOn = on
	if l.activityPin != nil {
		l.activityPin.Set(on)
	}
}
