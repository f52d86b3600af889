package busload

import (
	"fmt"

	cansniffer "github.com/samsamfire/gocansniffer"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultBaudrate uint32 = 500000
	DefaultWindowMs uint32 = 1000
	MaxRecords             = 1000
)

// Bits of a frame independent of identifier and payload :
// CRC(15) + CRC delimiter(1) + ACK slot(1) + ACK delimiter(1) + EOF(7) + IFS(3)
const frameTrailerBits = 25

// Result of a load calculation over the sliding window
type Result struct {
	LoadPercentage  float64 // 0-100 %
	BitrateActual   uint32  // bits/s observed in window
	MessageCount    uint32  // frames in window
	TotalBits       uint32  // bits in window
	MaxPossibleBits uint32  // channel capacity in window
	TimestampMs     uint32  // time of calculation
}

type record struct {
	timestamp uint32
	bits      uint32
}

// Calculator estimates bus utilization from the frames seen during
// the last window. History is a fixed ring of [MaxRecords] records,
// oldest records are overwritten when the ring is full.
type Calculator struct {
	clock         cansniffer.Clock
	history       [MaxRecords]record
	historyIndex  int // next insertion position
	historyCount  int
	baudrate      uint32
	windowMs      uint32
	totalMessages uint32
	totalBits     uint32
	errorCount    uint32
	lastResult    Result
}

// NewCalculator creates a calculator for the given nominal baudrate
func NewCalculator(clock cansniffer.Clock, baudrate uint32) (*Calculator, error) {
	if clock == nil {
		return nil, fmt.Errorf("%w: nil clock", cansniffer.ErrInvalidParam)
	}
	if baudrate == 0 {
		return nil, fmt.Errorf("%w: baudrate 0", cansniffer.ErrInvalidParam)
	}
	return &Calculator{clock: clock, baudrate: baudrate, windowMs: DefaultWindowMs}, nil
}

// Reset clears history and statistics, configuration is kept
func (c *Calculator) Reset() {
	c.historyIndex = 0
	c.historyCount = 0
	c.totalMessages = 0
	c.totalBits = 0
	c.errorCount = 0
	c.lastResult = Result{}
}

// SetBaudrate changes the nominal baudrate. 0 is rejected and counted as an error.
func (c *Calculator) SetBaudrate(baudrate uint32) error {
	if baudrate == 0 {
		c.errorCount++
		log.Warnf("[LOAD] rejected baudrate 0")
		return fmt.Errorf("%w: baudrate 0", cansniffer.ErrInvalidParam)
	}
	c.baudrate = baudrate
	return nil
}

// SetWindow changes the sliding window length. 0 is rejected and counted as an error.
func (c *Calculator) SetWindow(windowMs uint32) error {
	if windowMs == 0 {
		c.errorCount++
		return fmt.Errorf("%w: window 0", cansniffer.ErrInvalidParam)
	}
	c.windowMs = windowMs
	return nil
}

func (c *Calculator) Baudrate() uint32 {
	return c.baudrate
}

func (c *Calculator) Window() uint32 {
	return c.windowMs
}

// AddMessage records one observed frame at the current clock tick
func (c *Calculator) AddMessage(extended bool, dlc uint8, remote bool) {
	if dlc > cansniffer.MaxDLC {
		c.errorCount++
		return
	}
	bits := BitsInFrame(extended, dlc, remote)
	c.addToHistory(c.clock.Millis(), bits)
	c.totalMessages++
	c.totalBits += bits
}

// CalculateLoad prunes records older than the window and computes the load
// of the remaining ones
func (c *Calculator) CalculateLoad(now uint32) Result {
	c.cleanupOldRecords(now)

	bitsInWindow := c.bitsInWindow()
	result := Result{
		LoadPercentage:  LoadPercentage(bitsInWindow, c.windowMs, c.baudrate),
		BitrateActual:   uint32(uint64(bitsInWindow) * 1000 / uint64(c.windowMs)),
		MessageCount:    uint32(c.historyCount),
		TotalBits:       bitsInWindow,
		MaxPossibleBits: maxPossibleBits(c.windowMs, c.baudrate),
		TimestampMs:     now,
	}
	c.lastResult = result
	return result
}

// Last calculated result
func (c *Calculator) LastResult() Result {
	return c.lastResult
}

func (c *Calculator) CurrentLoadPercentage() float64 {
	return c.lastResult.LoadPercentage
}

// Number of records currently held in history
func (c *Calculator) Len() int {
	return c.historyCount
}

func (c *Calculator) TotalMessages() uint32 {
	return c.totalMessages
}

func (c *Calculator) TotalBits() uint32 {
	return c.totalBits
}

func (c *Calculator) ErrorCount() uint32 {
	return c.errorCount
}

// BitsInFrame returns the nominal size of a frame on the wire, stuff bits excluded :
// SOF(1) + identifier(11, or 29 + IDE(1)) + RTR(1) + reserved(1) + DLC(4)
// + data(8*dlc, data frames only) + trailer(25)
func BitsInFrame(extended bool, dlc uint8, remote bool) uint32 {
	bits := uint32(1)
	if extended {
		bits += 29 + 1
	} else {
		bits += 11
	}
	bits += 1 + 1 + 4
	if !remote {
		bits += 8 * uint32(dlc)
	}
	return bits + frameTrailerBits
}

// LoadPercentage returns the share of channel capacity used, clamped to 100
func LoadPercentage(totalBits uint32, windowMs uint32, baudrate uint32) float64 {
	if baudrate == 0 || windowMs == 0 {
		return 0
	}
	maxBits := maxPossibleBits(windowMs, baudrate)
	if maxBits == 0 {
		return 100
	}
	percentage := float64(totalBits) * 100 / float64(maxBits)
	if percentage > 100 {
		percentage = 100
	}
	return percentage
}

func maxPossibleBits(windowMs uint32, baudrate uint32) uint32 {
	return uint32(uint64(baudrate) * uint64(windowMs) / 1000)
}

func (c *Calculator) addToHistory(timestamp uint32, bits uint32) {
	c.history[c.historyIndex] = record{timestamp: timestamp, bits: bits}
	c.historyIndex = (c.historyIndex + 1) % MaxRecords
	if c.historyCount < MaxRecords {
		c.historyCount++
	}
}

// Index of the oldest record
func (c *Calculator) startIndex() int {
	return (c.historyIndex + MaxRecords - c.historyCount) % MaxRecords
}

// Drop records outside of the window. Survivors are compacted towards the
// oldest position keeping their order, the write position never overtakes
// the read position so compaction happens in place.
func (c *Calculator) cleanupOldRecords(now uint32) {
	if c.historyCount == 0 {
		return
	}
	start := c.startIndex()
	write := start
	kept := 0
	for i := 0; i < c.historyCount; i++ {
		read := (start + i) % MaxRecords
		rec := c.history[read]
		if now-rec.timestamp > c.windowMs {
			continue
		}
		if read != write {
			c.history[write] = rec
		}
		write = (write + 1) % MaxRecords
		kept++
	}
	if dropped := c.historyCount - kept; dropped > 0 {
		log.Debugf("[LOAD] pruned %v records older than %v ms", dropped, c.windowMs)
	}
	c.historyCount = kept
	c.historyIndex = write
}

func (c *Calculator) bitsInWindow() uint32 {
	start := c.startIndex()
	total := uint32(0)
	for i := 0; i < c.historyCount; i++ {
		total += c.history[(start+i)%MaxRecords].bits
	}
	return total
}
