package sequence

import (
	"fmt"

	cansniffer "github.com/samsamfire/gocansniffer"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultMaxSequences  = 4
	DefaultMinIntervalMs = 1
)

// Sequence is a periodic transmission of a single frame.
// Count 0 repeats until stopped.
type Sequence struct {
	ID         uint32
	Kind       cansniffer.IDKind
	Data       [8]byte
	Len        uint8
	Count      uint32
	Sent       uint32
	IntervalMs uint32
	LastSend   uint32
	Active     bool
	sentOnce   bool
}

func (s *Sequence) IsInfinite() bool {
	return s.Count == 0
}

func (s *Sequence) frame() cansniffer.Frame {
	return cansniffer.NewFrame(s.ID, s.Kind, s.Data[:s.Len])
}

func (s *Sequence) due(now uint32) bool {
	return !s.sentOnce || now-s.LastSend >= s.IntervalMs
}

// Scheduler owns a fixed pool of sequences and sends them when due.
// It is driven by calling [Scheduler.Update] once per loop pass.
type Scheduler struct {
	tx            cansniffer.Transmitter
	sequences     []Sequence
	activeCount   int
	minIntervalMs uint32
	sendErrors    uint32
}

// NewScheduler creates a scheduler able to run capacity sequences at once
func NewScheduler(tx cansniffer.Transmitter, capacity int, minIntervalMs uint32) (*Scheduler, error) {
	if tx == nil {
		return nil, fmt.Errorf("%w: nil transmitter", cansniffer.ErrInvalidParam)
	}
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: capacity %v", cansniffer.ErrInvalidParam, capacity)
	}
	if minIntervalMs == 0 {
		minIntervalMs = DefaultMinIntervalMs
	}
	return &Scheduler{
		tx:            tx,
		sequences:     make([]Sequence, capacity),
		minIntervalMs: minIntervalMs,
	}, nil
}

// Start schedules data to be sent count times every intervalMs.
// An active sequence with the same id is stopped and replaced.
// The first transmission happens on the next [Scheduler.Update].
func (s *Scheduler) Start(id uint32, data []byte, count uint32, intervalMs uint32) (Sequence, error) {
	if len(data) == 0 || len(data) > int(cansniffer.MaxDLC) {
		return Sequence{}, fmt.Errorf("%w: sequence length %v", cansniffer.ErrInvalidParam, len(data))
	}
	if id > cansniffer.MaxExtendedID {
		return Sequence{}, fmt.Errorf("%w: id x%x", cansniffer.ErrInvalidParam, id)
	}
	if intervalMs < s.minIntervalMs {
		intervalMs = s.minIntervalMs
	}
	if s.find(id) >= 0 {
		log.Debugf("[SEQ] restarting sequence x%x", id)
		_ = s.Stop(id)
	}
	if s.activeCount >= len(s.sequences) {
		return Sequence{}, fmt.Errorf("%w: %v sequences already running", cansniffer.ErrResourceExhausted, s.activeCount)
	}
	index := s.findFree()
	if index < 0 {
		return Sequence{}, fmt.Errorf("%w: no free sequence slot", cansniffer.ErrResourceExhausted)
	}
	seq := &s.sequences[index]
	*seq = Sequence{
		ID:         id,
		Kind:       cansniffer.KindForID(id),
		Len:        uint8(len(data)),
		Count:      count,
		IntervalMs: intervalMs,
		Active:     true,
	}
	copy(seq.Data[:], data)
	s.activeCount++
	log.Debugf("[SEQ] started x%x (%v) count %v every %v ms", id, seq.Kind, count, intervalMs)
	return *seq, nil
}

// Stop deactivates the sequence with id
func (s *Scheduler) Stop(id uint32) error {
	index := s.find(id)
	if index < 0 {
		return fmt.Errorf("%w: sequence x%x", cansniffer.ErrNotFound, id)
	}
	s.deactivate(&s.sequences[index])
	log.Debugf("[SEQ] stopped x%x", id)
	return nil
}

// StopAll deactivates every sequence and returns how many were running
func (s *Scheduler) StopAll() int {
	stopped := s.activeCount
	for i := range s.sequences {
		s.sequences[i].Active = false
	}
	s.activeCount = 0
	return stopped
}

// Update sends every sequence that is due at now. A failed send still counts
// as an attempt.
func (s *Scheduler) Update(now uint32) {
	for i := range s.sequences {
		seq := &s.sequences[i]
		if !seq.Active || !seq.due(now) {
			continue
		}
		err := s.tx.Send(seq.frame())
		if err != nil {
			s.sendErrors++
			log.Warnf("[SEQ] failed to send x%x : %v", seq.ID, err)
		}
		seq.Sent++
		seq.LastSend = now
		seq.sentOnce = true
		if !seq.IsInfinite() && seq.Sent >= seq.Count {
			s.deactivate(seq)
			log.Debugf("[SEQ] sequence x%x completed after %v frames", seq.ID, seq.Sent)
		}
	}
}

// Find returns a copy of the active sequence with id
func (s *Scheduler) Find(id uint32) (Sequence, bool) {
	index := s.find(id)
	if index < 0 {
		return Sequence{}, false
	}
	return s.sequences[index], true
}

// AppendActive appends a copy of every active sequence to dst
func (s *Scheduler) AppendActive(dst []Sequence) []Sequence {
	for i := range s.sequences {
		if s.sequences[i].Active {
			dst = append(dst, s.sequences[i])
		}
	}
	return dst
}

func (s *Scheduler) ActiveCount() int {
	return s.activeCount
}

func (s *Scheduler) Capacity() int {
	return len(s.sequences)
}

func (s *Scheduler) SendErrors() uint32 {
	return s.sendErrors
}

func (s *Scheduler) deactivate(seq *Sequence) {
	if !seq.Active {
		return
	}
	seq.Active = false
	s.activeCount--
}

func (s *Scheduler) find(id uint32) int {
	for i := range s.sequences {
		if s.sequences[i].Active && s.sequences[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Scheduler) findFree() int {
	for i := range s.sequences {
		if !s.sequences[i].Active {
			return i
		}
	}
	return -1
}
