package sequence

import (
	"errors"
	"testing"

	cansniffer "github.com/samsamfire/gocansniffer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentFrame struct {
	at    uint32
	frame cansniffer.Frame
}

type recordingTransmitter struct {
	now  uint32
	sent []sentFrame
	fail bool
}

func (r *recordingTransmitter) Send(frame cansniffer.Frame) error {
	r.sent = append(r.sent, sentFrame{r.now, frame})
	if r.fail {
		return errors.New("tx mailbox full")
	}
	return nil
}

func (r *recordingTransmitter) update(s *Scheduler, now uint32) {
	r.now = now
	s.Update(now)
}

func newTestScheduler(t *testing.T) (*Scheduler, *recordingTransmitter) {
	tx := &recordingTransmitter{}
	scheduler, err := NewScheduler(tx, DefaultMaxSequences, DefaultMinIntervalMs)
	require.Nil(t, err)
	return scheduler, tx
}

func TestNewSchedulerInvalid(t *testing.T) {
	_, err := NewScheduler(nil, 4, 1)
	assert.ErrorIs(t, err, cansniffer.ErrInvalidParam)
	_, err = NewScheduler(&recordingTransmitter{}, 0, 1)
	assert.ErrorIs(t, err, cansniffer.ErrInvalidParam)
}

func TestSequenceLifecycle(t *testing.T) {
	scheduler, tx := newTestScheduler(t)
	_, err := scheduler.Start(0x200, []byte{0xAA, 0xBB}, 3, 50)
	require.Nil(t, err)
	assert.Equal(t, 1, scheduler.ActiveCount())

	for now := uint32(0); now <= 200; now += 10 {
		tx.update(scheduler, now)
	}
	require.Len(t, tx.sent, 3)
	for i, sent := range tx.sent {
		assert.Equal(t, uint32(i*50), sent.at)
		assert.Equal(t, cansniffer.NewFrame(0x200, cansniffer.Standard, []byte{0xAA, 0xBB}), sent.frame)
	}
	assert.Equal(t, 0, scheduler.ActiveCount())
	_, ok := scheduler.Find(0x200)
	assert.False(t, ok)
}

func TestSequenceFirstSendImmediate(t *testing.T) {
	scheduler, tx := newTestScheduler(t)
	_, err := scheduler.Start(0x10, []byte{1}, 0, 1000)
	require.Nil(t, err)
	tx.update(scheduler, 5000)
	assert.Len(t, tx.sent, 1)
	tx.update(scheduler, 5999)
	assert.Len(t, tx.sent, 1)
	tx.update(scheduler, 6000)
	assert.Len(t, tx.sent, 2)
}

func TestSequenceSingleShot(t *testing.T) {
	scheduler, tx := newTestScheduler(t)
	_, err := scheduler.Start(0x10, []byte{1}, 1, 100)
	require.Nil(t, err)
	tx.update(scheduler, 0)
	tx.update(scheduler, 100)
	assert.Len(t, tx.sent, 1)
	assert.Equal(t, 0, scheduler.ActiveCount())
}

func TestSequenceInfinite(t *testing.T) {
	scheduler, tx := newTestScheduler(t)
	_, err := scheduler.Start(0x18FF0000, []byte{1, 2, 3}, 0, 10)
	require.Nil(t, err)
	for now := uint32(0); now < 1000; now += 10 {
		tx.update(scheduler, now)
	}
	assert.Len(t, tx.sent, 100)
	assert.Equal(t, cansniffer.Extended, tx.sent[0].frame.Kind)
	seq, ok := scheduler.Find(0x18FF0000)
	require.True(t, ok)
	assert.True(t, seq.IsInfinite())
	assert.EqualValues(t, 100, seq.Sent)

	require.Nil(t, scheduler.Stop(0x18FF0000))
	tx.update(scheduler, 2000)
	assert.Len(t, tx.sent, 100)
	assert.ErrorIs(t, scheduler.Stop(0x18FF0000), cansniffer.ErrNotFound)
}

func TestSequenceDuplicateRestarts(t *testing.T) {
	scheduler, tx := newTestScheduler(t)
	_, err := scheduler.Start(0x300, []byte{0x01}, 0, 100)
	require.Nil(t, err)
	tx.update(scheduler, 0)
	tx.update(scheduler, 100)
	first, _ := scheduler.Find(0x300)
	assert.EqualValues(t, 2, first.Sent)

	seq, err := scheduler.Start(0x300, []byte{0x02, 0x03}, 5, 20)
	require.Nil(t, err)
	assert.EqualValues(t, 0, seq.Sent)
	assert.Equal(t, 1, scheduler.ActiveCount())

	// Restarted sequence sends right away with the new payload
	tx.update(scheduler, 110)
	require.Len(t, tx.sent, 3)
	assert.Equal(t, []byte{0x02, 0x03}, tx.sent[2].frame.Payload())
	second, _ := scheduler.Find(0x300)
	assert.EqualValues(t, 1, second.Sent)
}

func TestSequenceCapacity(t *testing.T) {
	scheduler, _ := newTestScheduler(t)
	for i := 0; i < DefaultMaxSequences; i++ {
		_, err := scheduler.Start(uint32(0x100+i), []byte{1}, 0, 10)
		require.Nil(t, err)
	}
	_, err := scheduler.Start(0x500, []byte{1}, 0, 10)
	assert.ErrorIs(t, err, cansniffer.ErrResourceExhausted)
	// Same id restart is allowed even when full
	_, err = scheduler.Start(0x101, []byte{2}, 0, 10)
	assert.Nil(t, err)
	assert.Equal(t, DefaultMaxSequences, scheduler.ActiveCount())
	assert.Len(t, scheduler.AppendActive(nil), DefaultMaxSequences)

	assert.Equal(t, DefaultMaxSequences, scheduler.StopAll())
	assert.Equal(t, 0, scheduler.ActiveCount())
	assert.Empty(t, scheduler.AppendActive(nil))
}

func TestSequenceValidation(t *testing.T) {
	scheduler, _ := newTestScheduler(t)
	_, err := scheduler.Start(0x100, nil, 1, 10)
	assert.ErrorIs(t, err, cansniffer.ErrInvalidParam)
	_, err = scheduler.Start(0x100, make([]byte, 9), 1, 10)
	assert.ErrorIs(t, err, cansniffer.ErrInvalidParam)
	_, err = scheduler.Start(0x20000000, []byte{1}, 1, 10)
	assert.ErrorIs(t, err, cansniffer.ErrInvalidParam)
	assert.Equal(t, 0, scheduler.ActiveCount())

	seq, err := scheduler.Start(0x100, []byte{1}, 1, 0)
	require.Nil(t, err)
	assert.EqualValues(t, DefaultMinIntervalMs, seq.IntervalMs)
}

func TestSequenceSendFailureCounts(t *testing.T) {
	scheduler, tx := newTestScheduler(t)
	tx.fail = true
	_, err := scheduler.Start(0x100, []byte{1}, 2, 10)
	require.Nil(t, err)
	tx.update(scheduler, 0)
	tx.update(scheduler, 10)
	assert.EqualValues(t, 2, scheduler.SendErrors())
	assert.Equal(t, 0, scheduler.ActiveCount())
}

func TestSequenceTickWraparound(t *testing.T) {
	scheduler, tx := newTestScheduler(t)
	_, err := scheduler.Start(0x100, []byte{1}, 0, 100)
	require.Nil(t, err)
	tx.update(scheduler, 0xFFFFFFF0)
	tx.update(scheduler, 0x00000010)
	assert.Len(t, tx.sent, 1)
	tx.update(scheduler, 0x00000054)
	assert.Len(t, tx.sent, 2)
}
