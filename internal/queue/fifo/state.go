package fifo

import (
	"unsafe"

	"github.com/pbnjay/memory"
)

// Number of queued elements
func (queue *Queue[T]) Len() (length int) {
	queue.mu.Lock()
	length = queue.count
	queue.mu.Unlock()
	return
}

// Fixed capacity, 0 when unbounded
func (queue *Queue[T]) Capacity() (capacity int) {
	capacity = queue.capacity
	return
}

func (queue *Queue[T]) Bounded() (bounded bool) {
	bounded = queue.capacity > 0
	return
}

// True when a bounded queue is at capacity (never for unbounded)
func (queue *Queue[T]) Full() (full bool) {
	queue.mu.Lock()
	full = queue.capacity > 0 && queue.count >= queue.capacity
	queue.mu.Unlock()
	return
}

func (queue *Queue[T]) Empty() (empty bool) {
	queue.mu.Lock()
	empty = queue.count == 0
	queue.mu.Unlock()
	return
}

// Drops all queued elements, returns how many were dropped
func (queue *Queue[T]) Clear() (dropped int) {
	queue.mu.Lock()
	dropped = queue.count
	var zero T
	for i := 0; i < queue.count; i++ {
		queue.buf[(queue.head+i)%len(queue.buf)] = zero
	}
	queue.head = 0
	queue.count = 0
	queue.Metrics.Depth.Store(0)
	queue.mu.Unlock()

	if dropped > 0 {
		signal(queue.notFull)
	}
	return
}

// Registers a live producer
func (queue *Queue[T]) AddProducer() {
	queue.producers.Add(1)
}

// Marks a producer as finished
func (queue *Queue[T]) DoneProducer() {
	queue.producers.Add(-1)
	// Wake waiting consumers so they can observe the change
	signal(queue.notEmpty)
}

// Live producer count
func (queue *Queue[T]) Producers() (count int) {
	count = int(queue.producers.Load())
	return
}

// Doubles ring size (up to capacity when bounded), caller must hold mu.
// Refuses when the new ring would not fit in free system memory.
func (queue *Queue[T]) grow() (grown bool) {
	newSize := len(queue.buf) * 2
	if newSize == 0 {
		newSize = initialUnboundedSize
	}
	if queue.capacity > 0 {
		newSize = min(newSize, queue.capacity)
	}
	if newSize <= len(queue.buf) {
		return
	}

	var zero T
	required := uint64(newSize) * uint64(unsafe.Sizeof(zero))
	availMem := memory.FreeMemory()
	if availMem > 0 && required > availMem {
		return
	}

	newBuf := make([]T, newSize)
	for i := 0; i < queue.count; i++ {
		newBuf[i] = queue.buf[(queue.head+i)%len(queue.buf)]
	}
	queue.buf = newBuf
	queue.head = 0
	grown = true
	return
}
