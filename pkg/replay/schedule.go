package replay

import (
	"context"
	"fmt"
	"math"
	"mclbus/internal/atomics"
	"mclbus/internal/global"
	"mclbus/internal/logctx"
	"mclbus/pkg/transport"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// Drains the record queue and re-publishes each message at its recorded pace
type ScheduleBroadcasts struct {
	Namespace []string
	ctx       context.Context
	queue     *Queue
	speed     float64

	mutex   sync.Mutex // serializes Start/Stop
	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	counter atomic.Uint64
	Metrics *ScheduleMetrics
}

// Per-run pacing state
type pacer struct {
	started     bool
	prevElapsed float64
	deadline    time.Time
}

// Creates scheduler over queue. Speed above 1 compresses gaps, below 1 stretches them.
func NewScheduleBroadcasts(ctx context.Context, queue *Queue, speed float64) (scheduler *ScheduleBroadcasts, err error) {
	if queue == nil {
		err = fmt.Errorf("%w: queue is nil", ErrInvalidArgument)
		return
	}
	if math.IsNaN(speed) || math.IsInf(speed, 0) || speed <= 0 {
		err = fmt.Errorf("%w: speed must be a finite number above 0, got %v", ErrInvalidArgument, speed)
		return
	}

	namespace := append(logctx.GetTagList(ctx), global.NSSchedule)
	scheduler = &ScheduleBroadcasts{
		Namespace: namespace,
		ctx:       logctx.OverwriteCtxTag(ctx, namespace),
		queue:     queue,
		speed:     speed,
		Metrics:   &ScheduleMetrics{},
	}
	return
}

func (scheduler *ScheduleBroadcasts) Speed() float64 {
	return scheduler.speed
}

func (scheduler *ScheduleBroadcasts) Queue() *Queue {
	return scheduler.queue
}

// Records published
func (scheduler *ScheduleBroadcasts) Counter() uint64 {
	return scheduler.counter.Load()
}

// True until stopped or the queue is drained with no producer left
func (scheduler *ScheduleBroadcasts) IsAlive() bool {
	return scheduler.running.Load()
}

// Starts the consumer, false if already running
func (scheduler *ScheduleBroadcasts) Start() (started bool) {
	scheduler.mutex.Lock()
	defer scheduler.mutex.Unlock()

	if scheduler.running.Load() {
		return
	}
	scheduler.wg.Wait()

	workerCtx, cancel := context.WithCancel(scheduler.ctx)
	scheduler.cancel = cancel
	scheduler.running.Store(true)

	scheduler.wg.Add(1)
	go func() {
		defer scheduler.wg.Done()
		scheduler.run(workerCtx)
	}()

	logctx.LogEvent(scheduler.ctx, global.VerbosityProgress, global.InfoLog,
		"Started replay at speed %gx\n", scheduler.speed)
	started = true
	return
}

// Stops and joins the consumer, false if not running
func (scheduler *ScheduleBroadcasts) Stop() (stopped bool) {
	scheduler.mutex.Lock()
	defer scheduler.mutex.Unlock()

	if !scheduler.running.Load() {
		return
	}
	scheduler.cancel()
	scheduler.wg.Wait()

	stopped = true
	return
}

func (scheduler *ScheduleBroadcasts) run(ctx context.Context) {
	broadcasters := make(map[string]*transport.MessageBroadcaster)
	defer func() {
		for _, broadcaster := range broadcasters {
			broadcaster.Close()
		}
		scheduler.running.Store(false)
		logctx.LogEvent(ctx, global.VerbosityProgress, global.InfoLog,
			"Replay worker exited after %d records\n", scheduler.counter.Load())
	}()

	var pace pacer
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		record, ok := scheduler.queue.PopTimeout(ctx, global.PollInterval)
		if !ok {
			if ctx.Err() != nil {
				return
			}
			if scheduler.queue.Producers() == 0 && scheduler.queue.Empty() {
				// Nothing queued and nothing more coming
				return
			}
			continue
		}

		if !scheduler.wait(ctx, &pace, record.ElapsedTime) {
			return
		}

		func() {
			defer func() {
				// Record panics and continue replaying
				if fatalError := recover(); fatalError != nil {
					stack := debug.Stack()
					logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog,
						"panic in replay worker thread: %v\n%s", fatalError, stack)
				}
			}()
			scheduler.publish(ctx, broadcasters, record)
		}()
	}
}

// Sleeps until the record's deadline; false when cancelled.
// Deadlines accumulate from the first record so oversleeps do not drift.
func (scheduler *ScheduleBroadcasts) wait(ctx context.Context, pace *pacer, elapsed float64) (proceed bool) {
	proceed = true

	if !pace.started {
		pace.started = true
		pace.prevElapsed = elapsed
		pace.deadline = time.Now()
		return
	}

	gap := (elapsed - pace.prevElapsed) / scheduler.speed
	pace.prevElapsed = elapsed
	pace.deadline = pace.deadline.Add(time.Duration(gap * float64(time.Second)))

	delay := time.Until(pace.deadline)
	if delay <= 0 {
		// Behind schedule, catch up silently
		lag := uint64(-delay)
		if lag > 0 {
			scheduler.Metrics.Late.Add(1)
			atomics.StoreMax(&scheduler.Metrics.MaxLagNs, lag)
		}
		return
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		proceed = false
	case <-timer.C:
	}
	return
}

// Publishes through a broadcaster for the message's type, opened on first use
func (scheduler *ScheduleBroadcasts) publish(ctx context.Context, broadcasters map[string]*transport.MessageBroadcaster, record Record) {
	if record.Message == nil {
		scheduler.Metrics.PublishErrors.Add(1)
		logctx.LogEvent(ctx, global.VerbosityStandard, global.WarnLog,
			"Skipped record without message at %.6fs\n", record.ElapsedTime)
		return
	}

	typeName := record.Message.TypeName()
	broadcaster, ok := broadcasters[typeName]
	if !ok {
		var err error
		broadcaster, err = transport.NewMessageBroadcaster(ctx, typeName, "")
		if err != nil {
			scheduler.Metrics.PublishErrors.Add(1)
			logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog,
				"Failed opening broadcaster for '%s': %v\n", typeName, err)
			return
		}
		broadcasters[typeName] = broadcaster
	}

	err := broadcaster.PublishTopic(record.Message, record.Topic)
	if err != nil {
		scheduler.Metrics.PublishErrors.Add(1)
		logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog,
			"Failed publishing '%s' record at %.6fs: %v\n", typeName, record.ElapsedTime, err)
		return
	}

	scheduler.counter.Add(1)
	scheduler.Metrics.Published.Add(1)
	logctx.LogEvent(ctx, global.VerbosityData, global.InfoLog,
		"Published '%s' (topic '%s') at %.6fs\n", typeName, record.Topic, record.ElapsedTime)
}
