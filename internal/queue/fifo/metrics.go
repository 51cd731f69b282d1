package fifo

import (
	"mclbus/internal/metrics"
	"time"
)

// Reads gauges and drains interval counters
func (queue *Queue[T]) CollectMetrics(interval time.Duration) (collection []metrics.Metric) {
	batch := metrics.NewBatch(queue.Namespace, interval)

	batch.Add("depth", queue.Metrics.Depth.Load(), "count", metrics.Gauge, "Current number of items in the queue")
	batch.Add("capacity", uint64(queue.capacity), "count", metrics.Gauge, "Fixed queue capacity (0 is unbounded)")
	batch.Add("producers", uint64(max(queue.Producers(), 0)), "count", metrics.Gauge, "Live producers feeding the queue")
	batch.Add("push_attempts", queue.Metrics.PushAttempts.Swap(0), "count", metrics.Counter, "Total push attempts in the interval")
	batch.Add("push_success", queue.Metrics.PushSuccess.Swap(0), "count", metrics.Counter, "Total push attempts that succeeded in the interval")
	batch.Add("push_full", queue.Metrics.PushFull.Swap(0), "count", metrics.Counter, "Push attempts rejected because the queue was full")
	batch.Add("growth_refused", queue.Metrics.GrowthRefused.Swap(0), "count", metrics.Counter, "Push attempts rejected because growth would exceed free memory")
	batch.Add("pop_attempts", queue.Metrics.PopAttempts.Swap(0), "count", metrics.Counter, "Total pop attempts in the interval")
	batch.Add("pop_success", queue.Metrics.PopSuccess.Swap(0), "count", metrics.Counter, "Total pop attempts that succeeded in the interval")
	batch.Add("pop_waits", queue.Metrics.PopWaits.Swap(0), "count", metrics.Counter, "Times a consumer waited on an empty queue")

	collection = batch.Metrics
	return
}
