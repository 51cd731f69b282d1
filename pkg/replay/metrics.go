package replay

import (
	"mclbus/internal/metrics"
	"sync/atomic"
	"time"
)

type BufferMetrics struct {
	Read       atomic.Uint64 // records read from the source
	Pushed     atomic.Uint64 // records placed on the queue
	ReadErrors atomic.Uint64 // source failures other than end of data
	WaitNs     atomic.Uint64 // time spent waiting for queue space
}

type ScheduleMetrics struct {
	Published     atomic.Uint64 // records re-broadcast
	PublishErrors atomic.Uint64 // records that could not be sent
	Late          atomic.Uint64 // records sent after their deadline
	MaxLagNs      atomic.Uint64 // largest observed lateness
}

// Reads and clears interval counters
func (buffer *BufferData) CollectMetrics(interval time.Duration) (collection []metrics.Metric) {
	batch := metrics.NewBatch(buffer.Namespace, interval)

	batch.Add("read_total", buffer.Metrics.Read.Swap(0), "count", metrics.Counter, "Records read from the source in the interval")
	batch.Add("pushed_total", buffer.Metrics.Pushed.Swap(0), "count", metrics.Counter, "Records queued in the interval")
	batch.Add("read_errors_total", buffer.Metrics.ReadErrors.Swap(0), "count", metrics.Counter, "Source read failures in the interval")
	batch.Add("wait_time_ns", buffer.Metrics.WaitNs.Swap(0), "ns", metrics.Counter, "Time spent waiting for queue space in the interval")

	collection = append(batch.Metrics, buffer.queue.CollectMetrics(interval)...)
	return
}

// Reads and clears interval counters
func (scheduler *ScheduleBroadcasts) CollectMetrics(interval time.Duration) (collection []metrics.Metric) {
	batch := metrics.NewBatch(scheduler.Namespace, interval)

	batch.Add("published_total", scheduler.Metrics.Published.Swap(0), "count", metrics.Counter, "Records re-broadcast in the interval")
	batch.Add("publish_errors_total", scheduler.Metrics.PublishErrors.Swap(0), "count", metrics.Counter, "Records that could not be sent in the interval")
	batch.Add("late_total", scheduler.Metrics.Late.Swap(0), "count", metrics.Counter, "Records sent after their deadline in the interval")
	batch.Add("max_lag_ns", scheduler.Metrics.MaxLagNs.Swap(0), "ns", metrics.Summary, "Largest lateness behind schedule in the interval")

	collection = batch.Metrics
	return
}
