package fifo

import (
	"sync"
	"sync/atomic"
)

// Goroutine-safe FIFO ring. Capacity 0 means unbounded (ring grows on demand).
type Queue[T any] struct {
	Namespace []string
	mu        sync.Mutex
	buf       []T
	head      int // index of oldest item
	count     int
	capacity  int           // fixed limit, 0 = unbounded
	notEmpty  chan struct{} // single-token wake for consumers
	notFull   chan struct{} // single-token wake for producers
	producers atomic.Int32  // live producers feeding this queue
	Metrics   *MetricStorage
}

type MetricStorage struct {
	Depth atomic.Uint64 // Current items in queue

	PushAttempts  atomic.Uint64 // every Push call
	PushSuccess   atomic.Uint64
	PushFull      atomic.Uint64 // rejected, queue at capacity
	GrowthRefused atomic.Uint64 // rejected, not enough free memory to grow

	PopAttempts atomic.Uint64
	PopSuccess  atomic.Uint64
	PopWaits    atomic.Uint64 // times a consumer blocked on an empty queue
}
