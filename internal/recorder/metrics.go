package recorder

import (
	"context"
	"mclbus/internal/global"
	"mclbus/internal/logctx"
	"mclbus/internal/metrics"
	"runtime/debug"
	"time"
)

func NewGatherer(daemon *Daemon, interval time.Duration, maximumMetricAge time.Duration) (new *Gatherer) {
	new = &Gatherer{
		Registry:  metrics.New(),
		Interval:  interval,
		Retention: maximumMetricAge,
		daemon:    daemon,
	}
	return
}

func (gatherer *Gatherer) Run(ctx context.Context) {
	ctx = logctx.AppendCtxTag(ctx, global.NSMetric)

	// Track last run times for each interval
	lastRun := time.Now()

	ticker := time.NewTicker(gatherer.Interval / 2) // Use polling interval half of desired record interval
	defer ticker.Stop()

	// Counter to track how many ticks have passed (for retention)
	var tickCount int

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if now.Sub(lastRun) >= gatherer.Interval {
				timeSlice := gatherer.Registry.NewTimeSlice(now, gatherer.Interval)

				lastRun = now
				gatherer.runIntervalTasks(ctx, timeSlice, gatherer.Interval)
			}

			// Conduct old metric evaluations and cleanup
			tickCount++
			if tickCount >= 30 {
				gatherer.Registry.Prune(now, gatherer.Retention)
				tickCount = 0
			}
		}
	}
}

// Read metrics for each recording component
func (gatherer *Gatherer) runIntervalTasks(ctx context.Context, timeSlice time.Time, interval time.Duration) {
	// Record panics and continue on next interval
	defer func() {
		if fatalError := recover(); fatalError != nil {
			stack := debug.Stack()
			logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog,
				"panic in recorder metric collector thread: %v\n%s", fatalError, stack)
		}
	}()

	// Gatherer is started after the pipeline, these are set already
	var collection []metrics.Metric
	for _, listener := range gatherer.daemon.Listeners {
		collection = append(collection, listener.CollectMetrics(interval)...)
	}
	gatherer.Registry.Add(timeSlice, collection)

	queueMetrics := gatherer.daemon.Queue.CollectMetrics(interval)
	batch := metrics.NewBatch(gatherer.daemon.Queue.Namespace, interval)
	batch.Add("dropped_total", gatherer.daemon.Dropped.Swap(0), "count", metrics.Counter, "Deliveries dropped because the output queue was full")
	gatherer.Registry.Add(timeSlice, append(queueMetrics, batch.Metrics...))

	gatherer.Registry.Add(timeSlice, gatherer.daemon.Output.CollectMetrics(interval))
}
