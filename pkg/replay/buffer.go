package replay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mclbus/internal/global"
	"mclbus/internal/logctx"
	"mclbus/internal/queue/fifo"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// Reads a source ahead of time into the record queue on a background goroutine
type BufferData struct {
	Namespace []string
	ctx       context.Context
	source    Source
	length    int
	queue     *Queue

	mutex     sync.Mutex // serializes Start/Stop/Reset
	running   atomic.Bool
	exhausted atomic.Bool
	pending   *Record // read but not yet queued, owned by the worker while running
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	Metrics *BufferMetrics
}

// Creates buffer over source. Length 0 buffers without limit.
func NewBufferData(ctx context.Context, source Source, length int) (buffer *BufferData, err error) {
	if source == nil {
		err = fmt.Errorf("%w: source is nil", ErrInvalidArgument)
		return
	}
	if length < 0 {
		err = fmt.Errorf("%w: length must be positive (or 0 for unbounded), got %d", ErrInvalidArgument, length)
		return
	}

	namespace := append(logctx.GetTagList(ctx), global.NSBuffer)
	queue, err := fifo.New[Record](namespace, length)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrInvalidArgument, err)
		return
	}

	buffer = &BufferData{
		Namespace: namespace,
		ctx:       logctx.OverwriteCtxTag(ctx, namespace),
		source:    source,
		length:    length,
		queue:     queue,
		Metrics:   &BufferMetrics{},
	}
	return
}

// Starts the producer, false if already running
func (buffer *BufferData) Start() (started bool) {
	buffer.mutex.Lock()
	defer buffer.mutex.Unlock()

	if buffer.running.Load() {
		return
	}
	// Join a worker that finished on its own
	buffer.wg.Wait()

	workerCtx, cancel := context.WithCancel(buffer.ctx)
	buffer.cancel = cancel
	buffer.running.Store(true)
	buffer.queue.AddProducer()

	buffer.wg.Add(1)
	go func() {
		defer buffer.wg.Done()
		buffer.run(workerCtx)
	}()

	logctx.LogEvent(buffer.ctx, global.VerbosityProgress, global.InfoLog, "Started buffering records\n")
	started = true
	return
}

// Stops and joins the producer, false if not running
func (buffer *BufferData) Stop() (stopped bool) {
	buffer.mutex.Lock()
	defer buffer.mutex.Unlock()

	if !buffer.running.Load() {
		return
	}
	buffer.cancel()
	buffer.wg.Wait()

	logctx.LogEvent(buffer.ctx, global.VerbosityProgress, global.InfoLog,
		"Stopped buffering records (%d queued)\n", buffer.queue.Len())
	stopped = true
	return
}

// Rewinds the source and empties the queue
func (buffer *BufferData) Reset() (err error) {
	buffer.mutex.Lock()
	defer buffer.mutex.Unlock()

	if buffer.running.Load() {
		err = ErrRunning
		return
	}
	buffer.wg.Wait()

	rewinder, ok := buffer.source.(Rewinder)
	if !ok {
		err = fmt.Errorf("%w: %T", ErrNotRewindable, buffer.source)
		return
	}
	err = rewinder.Rewind()
	if err != nil {
		err = fmt.Errorf("failed to rewind source: %w", err)
		return
	}

	dropped := buffer.queue.Clear()
	buffer.pending = nil
	buffer.exhausted.Store(false)

	logctx.LogEvent(buffer.ctx, global.VerbosityProgress, global.InfoLog,
		"Reset buffer (dropped %d queued records)\n", dropped)
	return
}

// True while the producer goroutine runs
func (buffer *BufferData) IsAlive() bool {
	return buffer.running.Load()
}

// Queue is full or nothing more will arrive
func (buffer *BufferData) IsReady() bool {
	return buffer.queue.Full() || buffer.exhausted.Load()
}

// Source has not signaled end of data
func (buffer *BufferData) IsDataPending() bool {
	return !buffer.exhausted.Load()
}

func (buffer *BufferData) Queue() *Queue {
	return buffer.queue
}

// Configured capacity, 0 when unbounded
func (buffer *BufferData) Length() int {
	return buffer.length
}

func (buffer *BufferData) run(ctx context.Context) {
	defer func() {
		buffer.running.Store(false)
		buffer.queue.DoneProducer()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		var done bool
		func() {
			defer func() {
				// Record panics and stop producing
				if fatalError := recover(); fatalError != nil {
					stack := debug.Stack()
					logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog,
						"panic in buffer worker thread: %v\n%s", fatalError, stack)
					done = true
				}
			}()
			done = buffer.step(ctx)
		}()
		if done {
			return
		}
	}
}

// Reads (unless a record is pending) and queues one record; true when the worker should exit
func (buffer *BufferData) step(ctx context.Context) (done bool) {
	if buffer.pending == nil {
		record, err := buffer.source.Read()
		if errors.Is(err, io.EOF) {
			buffer.exhausted.Store(true)
			logctx.LogEvent(ctx, global.VerbosityProgress, global.InfoLog,
				"Source exhausted after %d records\n", buffer.Metrics.Read.Load())
			done = true
			return
		}
		if err != nil {
			buffer.Metrics.ReadErrors.Add(1)
			logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog,
				"Failed reading record from source: %v\n", err)
			done = true
			return
		}
		buffer.Metrics.Read.Add(1)
		buffer.pending = &record
	}

	start := time.Now()
	err := buffer.queue.PushBlocking(ctx, *buffer.pending)
	if err != nil {
		// Cancelled while waiting for space, record stays pending
		done = true
		return
	}
	buffer.Metrics.WaitNs.Add(uint64(time.Since(start)))
	buffer.Metrics.Pushed.Add(1)
	buffer.pending = nil
	return
}
