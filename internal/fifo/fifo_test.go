package fifo

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFifoPush(t *testing.T) {
	fifo := NewFifo[int](100)
	for i := 0; i < 5; i++ {
		assert.True(t, fifo.Push(i))
	}
	assert.Equal(t, 5, fifo.Len())
	assert.Equal(t, 95, fifo.Space())
	for i := 0; i < 95; i++ {
		assert.True(t, fifo.Push(i))
	}
	assert.True(t, fifo.IsFull())
	assert.False(t, fifo.Push(1000))
	assert.Equal(t, 100, fifo.Len())

	// Free up some space by reading then re writing
	for i := 0; i < 10; i++ {
		_, ok := fifo.Pop()
		assert.True(t, ok)
	}
	for i := 0; i < 10; i++ {
		assert.True(t, fifo.Push(i))
	}
	assert.False(t, fifo.Push(0))
}

func TestFifoPop(t *testing.T) {
	fifo := NewFifo[string](4)
	_, ok := fifo.Pop()
	assert.False(t, ok)
	assert.True(t, fifo.IsEmpty())

	fifo.Push("a")
	fifo.Push("b")
	head, ok := fifo.Peek()
	assert.True(t, ok)
	assert.Equal(t, "a", head)
	assert.Equal(t, 2, fifo.Len())

	v, _ := fifo.Pop()
	assert.Equal(t, "a", v)
	v, _ = fifo.Pop()
	assert.Equal(t, "b", v)
	_, ok = fifo.Pop()
	assert.False(t, ok)
}

func TestFifoWrapAround(t *testing.T) {
	fifo := NewFifo[int](3)
	for round := 0; round < 10; round++ {
		for i := 0; i < 3; i++ {
			assert.True(t, fifo.Push(round*10+i))
		}
		assert.False(t, fifo.Push(-1))
		for i := 0; i < 3; i++ {
			v, ok := fifo.Pop()
			assert.True(t, ok)
			assert.Equal(t, round*10+i, v)
		}
	}
}

func TestFifoReset(t *testing.T) {
	fifo := NewFifo[int](8)
	fifo.Push(1)
	fifo.Push(2)
	fifo.Reset()
	assert.True(t, fifo.IsEmpty())
	assert.Equal(t, 0, fifo.Len())
	assert.Equal(t, 8, fifo.Cap())
}

func TestFifoSingleProducerSingleConsumer(t *testing.T) {
	fifo := NewFifo[int](16)
	const total = 10000
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < total; {
			if fifo.Push(i) {
				i++
			}
		}
	}()
	expected := 0
	for expected < total {
		v, ok := fifo.Pop()
		if !ok {
			continue
		}
		assert.Equal(t, expected, v)
		expected++
	}
	wg.Wait()
}
