package processor

import (
	"testing"

	cansniffer "github.com/samsamfire/gocansniffer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type frameRecorder struct {
	frames []cansniffer.Frame
}

func (r *frameRecorder) HandleFrame(frame *cansniffer.Frame) {
	r.frames = append(r.frames, *frame)
}

type loadEntry struct {
	extended bool
	dlc      uint8
	remote   bool
}

type loadRecorder struct {
	entries []loadEntry
}

func (r *loadRecorder) AddMessage(extended bool, dlc uint8, remote bool) {
	r.entries = append(r.entries, loadEntry{extended, dlc, remote})
}

func newTestProcessor(t *testing.T, queueSize uint16) (*Processor, *cansniffer.ManualClock, *frameRecorder, *loadRecorder) {
	clock := &cansniffer.ManualClock{}
	sink := &frameRecorder{}
	load := &loadRecorder{}
	processor, err := NewProcessor(clock, queueSize, sink, load)
	require.Nil(t, err)
	return processor, clock, sink, load
}

func TestNewProcessorInvalid(t *testing.T) {
	_, err := NewProcessor(nil, 10, nil, nil)
	assert.ErrorIs(t, err, cansniffer.ErrInvalidParam)
	_, err = NewProcessor(&cansniffer.ManualClock{}, 0, nil, nil)
	assert.ErrorIs(t, err, cansniffer.ErrInvalidParam)
}

func TestIdleDropsFrames(t *testing.T) {
	processor, _, sink, _ := newTestProcessor(t, 8)
	assert.Equal(t, StateIdle, processor.State())
	processor.Handle(cansniffer.NewFrame(0x100, cansniffer.Standard, []byte{1}))
	assert.Equal(t, 0, processor.Pending())
	assert.False(t, processor.Process())
	assert.Empty(t, sink.frames)
	assert.EqualValues(t, 0, processor.ReceivedCount())
}

func TestProcessOneFramePerCall(t *testing.T) {
	processor, clock, sink, load := newTestProcessor(t, 8)
	processor.Start()
	clock.Set(1234)
	processor.Handle(cansniffer.NewFrame(0x100, cansniffer.Standard, []byte{1, 2}))
	processor.Handle(cansniffer.NewRemoteFrame(0x18FF0000, cansniffer.Extended, 8))
	assert.Equal(t, 2, processor.Pending())

	assert.True(t, processor.Process())
	assert.Len(t, sink.frames, 1)
	assert.EqualValues(t, 1234, sink.frames[0].Timestamp)
	assert.True(t, processor.Process())
	assert.False(t, processor.Process())

	assert.Len(t, sink.frames, 2)
	assert.Equal(t, []loadEntry{{false, 2, false}, {true, 8, true}}, load.entries)
	assert.EqualValues(t, 2, processor.ProcessedCount())
	assert.EqualValues(t, 0, processor.ErrorCount())
}

func TestProcessRejectsInvalidFrames(t *testing.T) {
	processor, _, sink, load := newTestProcessor(t, 8)
	processor.Start()
	badDLC := cansniffer.NewFrame(0x100, cansniffer.Standard, nil)
	badDLC.DLC = 9
	processor.Handle(badDLC)
	processor.Handle(cansniffer.NewFrame(0x800, cansniffer.Standard, nil))
	processor.Handle(cansniffer.NewFrame(0x800, cansniffer.Extended, nil))

	assert.Equal(t, 3, processor.ProcessN(10))
	assert.EqualValues(t, 2, processor.ErrorCount())
	assert.EqualValues(t, 1, processor.ProcessedCount())
	assert.Len(t, sink.frames, 1)
	assert.Len(t, load.entries, 1)
}

func TestPauseKeepsQueueing(t *testing.T) {
	processor, _, sink, _ := newTestProcessor(t, 8)
	assert.ErrorIs(t, processor.Pause(), cansniffer.ErrInvalidState)
	processor.Start()
	require.Nil(t, processor.Pause())
	processor.Handle(cansniffer.NewFrame(0x1, cansniffer.Standard, nil))
	assert.False(t, processor.Process())
	assert.Equal(t, 1, processor.Pending())

	require.Nil(t, processor.Resume())
	assert.ErrorIs(t, processor.Resume(), cansniffer.ErrInvalidState)
	assert.True(t, processor.Process())
	assert.Len(t, sink.frames, 1)
}

func TestQueueOverflowCounted(t *testing.T) {
	processor, _, _, _ := newTestProcessor(t, 2)
	processor.Start()
	for i := 0; i < 5; i++ {
		processor.Handle(cansniffer.NewFrame(uint32(i), cansniffer.Standard, nil))
	}
	assert.EqualValues(t, 5, processor.ReceivedCount())
	assert.EqualValues(t, 3, processor.DroppedCount())
	assert.Equal(t, 2, processor.ProcessN(10))
}

func TestStopDiscardsQueue(t *testing.T) {
	processor, _, sink, _ := newTestProcessor(t, 8)
	processor.Start()
	processor.Handle(cansniffer.NewFrame(0x1, cansniffer.Standard, nil))
	processor.Stop()
	assert.Equal(t, 0, processor.Pending())
	processor.Start()
	assert.False(t, processor.Process())
	assert.Empty(t, sink.frames)
}
