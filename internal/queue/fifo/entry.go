// First-in first-out queue with optional fixed capacity, used to hand records between producer and consumer workers
package fifo

import (
	"context"
	"fmt"
	"mclbus/internal/global"
	"time"
)

const initialUnboundedSize int = 16 // starting ring size

// Creates a new queue. Capacity 0 creates an unbounded queue.
func New[T any](namespace []string, capacity int) (queue *Queue[T], err error) {
	if capacity < 0 {
		err = fmt.Errorf("capacity must not be negative, got %d", capacity)
		return
	}

	// Bounded rings also start small and grow up to capacity
	size := initialUnboundedSize
	if capacity > 0 {
		size = min(capacity, initialUnboundedSize)
	}

	queue = &Queue[T]{
		Namespace: append(append([]string(nil), namespace...), global.NSQueue),
		buf:       make([]T, size),
		capacity:  capacity,
		notEmpty:  make(chan struct{}, 1),
		notFull:   make(chan struct{}, 1),
		Metrics:   &MetricStorage{},
	}
	return
}

// Attempts to append value (non success = queue full or growth refused)
func (queue *Queue[T]) Push(value T) (success bool) {
	queue.Metrics.PushAttempts.Add(1)

	queue.mu.Lock()
	if queue.capacity > 0 && queue.count >= queue.capacity {
		queue.mu.Unlock()
		queue.Metrics.PushFull.Add(1)
		return
	}
	if queue.count == len(queue.buf) {
		if !queue.grow() {
			queue.mu.Unlock()
			queue.Metrics.GrowthRefused.Add(1)
			return
		}
	}

	queue.buf[(queue.head+queue.count)%len(queue.buf)] = value
	queue.count++
	queue.Metrics.Depth.Store(uint64(queue.count))
	queue.mu.Unlock()

	queue.Metrics.PushSuccess.Add(1)
	signal(queue.notEmpty)
	success = true
	return
}

// Blocks until value is appended or ctx is done
func (queue *Queue[T]) PushBlocking(ctx context.Context, value T) (err error) {
	for {
		if queue.Push(value) {
			return
		}

		select {
		case <-ctx.Done():
			err = ctx.Err()
			return
		case <-queue.notFull:
		case <-time.After(global.PollInterval):
		}
	}
}

// Removes oldest element without waiting
func (queue *Queue[T]) TryPop() (out T, success bool) {
	queue.Metrics.PopAttempts.Add(1)

	queue.mu.Lock()
	if queue.count == 0 {
		queue.mu.Unlock()
		return
	}

	var zero T
	out = queue.buf[queue.head]
	queue.buf[queue.head] = zero
	queue.head = (queue.head + 1) % len(queue.buf)
	queue.count--
	queue.Metrics.Depth.Store(uint64(queue.count))
	queue.mu.Unlock()

	queue.Metrics.PopSuccess.Add(1)
	signal(queue.notFull)
	success = true
	return
}

// Blocks until an element is available or ctx is done
func (queue *Queue[T]) Pop(ctx context.Context) (out T, success bool) {
	for {
		out, success = queue.TryPop()
		if success {
			return
		}

		queue.Metrics.PopWaits.Add(1)
		select {
		case <-ctx.Done():
			return
		case <-queue.notEmpty:
		case <-time.After(global.PollInterval):
		}
	}
}

// Blocks up to timeout for an element
func (queue *Queue[T]) PopTimeout(ctx context.Context, timeout time.Duration) (out T, success bool) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	out, success = queue.Pop(waitCtx)
	return
}

// Non-blocking single token wake
func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
