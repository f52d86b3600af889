package fifo

import "sync/atomic"

// Bounded circular Fifo shared by exactly one producer and one consumer,
// e.g. a bus receive callback and the main loop.
// Storage is allocated once at creation, Push and Pop never allocate nor block.
// One slot is kept free to tell a full buffer from an empty one.
type Fifo[T any] struct {
	buffer   []T
	writePos atomic.Uint32
	readPos  atomic.Uint32
}

// NewFifo creates a fifo able to hold size elements
func NewFifo[T any](size uint16) *Fifo[T] {
	return &Fifo[T]{buffer: make([]T, int(size)+1)}
}

func (f *Fifo[T]) next(pos uint32) uint32 {
	pos++
	if pos == uint32(len(f.buffer)) {
		return 0
	}
	return pos
}

// Push appends an element, it returns false and drops the element if full.
// Only the producer may call Push.
func (f *Fifo[T]) Push(element T) bool {
	writePos := f.writePos.Load()
	writePosNext := f.next(writePos)
	if writePosNext == f.readPos.Load() {
		return false
	}
	f.buffer[writePos] = element
	f.writePos.Store(writePosNext)
	return true
}

// Pop removes the oldest element. Only the consumer may call Pop.
func (f *Fifo[T]) Pop() (T, bool) {
	var element T
	readPos := f.readPos.Load()
	if readPos == f.writePos.Load() {
		return element, false
	}
	element = f.buffer[readPos]
	f.buffer[readPos] = *new(T)
	f.readPos.Store(f.next(readPos))
	return element, true
}

// Peek returns the oldest element without removing it
func (f *Fifo[T]) Peek() (T, bool) {
	var element T
	readPos := f.readPos.Load()
	if readPos == f.writePos.Load() {
		return element, false
	}
	return f.buffer[readPos], true
}

// Number of elements currently stored
func (f *Fifo[T]) Len() int {
	sizeOccupied := int(f.writePos.Load()) - int(f.readPos.Load())
	if sizeOccupied < 0 {
		sizeOccupied += len(f.buffer)
	}
	return sizeOccupied
}

// Maximum number of elements
func (f *Fifo[T]) Cap() int {
	return len(f.buffer) - 1
}

// Remaining free space
func (f *Fifo[T]) Space() int {
	return f.Cap() - f.Len()
}

func (f *Fifo[T]) IsEmpty() bool {
	return f.readPos.Load() == f.writePos.Load()
}

func (f *Fifo[T]) IsFull() bool {
	return f.next(f.writePos.Load()) == f.readPos.Load()
}

// Reset drops every stored element. Must not race with Push or Pop.
func (f *Fifo[T]) Reset() {
	clear(f.buffer)
	f.readPos.Store(0)
	f.writePos.Store(0)
}
