package cansniffer

import (
	"sync/atomic"
	"time"
)

// Clock is a monotonically increasing millisecond tick source.
// The tick wraps around after ~49 days, users compare ticks with unsigned subtraction.
type Clock interface {
	Millis() uint32
}

// SystemClock counts milliseconds since its creation
type SystemClock struct {
	start time.Time
}

func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

func (c *SystemClock) Millis() uint32 {
	return uint32(time.Since(c.start).Milliseconds())
}

// ManualClock only moves when told to, used for simulation and tests
type ManualClock struct {
	now atomic.Uint32
}

func (c *ManualClock) Millis() uint32 {
	return c.now.Load()
}

func (c *ManualClock) Set(ms uint32) {
	c.now.Store(ms)
}

func (c *ManualClock) Advance(ms uint32) uint32 {
	return c.now.Add(ms)
}
