// Replays dump files onto the bus with their original timing
package player

import (
	"context"
	"fmt"
	"mclbus/internal/externalio/file"
	"mclbus/internal/global"
	"mclbus/internal/logctx"
	"mclbus/pkg/message"
	"mclbus/pkg/replay"
	"time"
)

// Interval for progress log lines
const progressInterval time.Duration = 5 * time.Second

// Replays the configured source until it is exhausted or ctx is done
func Run(ctx context.Context, cfg Config) (result Result, err error) {
	ctx = logctx.AppendCtxTag(ctx, global.NSReplay)

	err = cfg.setDefaults()
	if err != nil {
		return
	}

	for _, definition := range cfg.Messages {
		_, err = message.Ensure(definition)
		if err != nil {
			err = fmt.Errorf("failed registering message type: %w", err)
			return
		}
	}

	reader, err := file.Open(ctx, cfg.Source, cfg.MinTime, cfg.MaxTime)
	if err != nil {
		return
	}
	defer reader.Shutdown()

	buffer, err := replay.NewBufferData(ctx, reader, cfg.BufferLength)
	if err != nil {
		return
	}
	scheduler, err := replay.NewScheduleBroadcasts(ctx, buffer.Queue(), cfg.Speed)
	if err != nil {
		return
	}

	logctx.LogEvent(ctx, global.VerbosityStandard, global.InfoLog,
		"Replaying %v at %gx\n", reader.Paths(), cfg.Speed)

	buffer.Start()
	defer buffer.Stop()

	// Fill the buffer before timing starts
	ready := waitFor(ctx, func() bool { return buffer.IsReady() || !buffer.IsAlive() })
	if !ready {
		logctx.LogEvent(ctx, global.VerbosityStandard, global.InfoLog, "Replay interrupted while buffering\n")
		return
	}
	logctx.LogEvent(ctx, global.VerbosityProgress, global.InfoLog,
		"Buffered %d records\n", buffer.Queue().Len())

	start := time.Now()
	scheduler.Start()

	progress := time.NewTicker(progressInterval)
	defer progress.Stop()

	for scheduler.IsAlive() {
		select {
		case <-ctx.Done():
			scheduler.Stop()
		case <-progress.C:
			logctx.LogEvent(ctx, global.VerbosityProgress, global.InfoLog,
				"Published %d records, %d queued\n", scheduler.Counter(), buffer.Queue().Len())
		case <-time.After(global.PollInterval):
		}
	}

	result = Result{
		Published:     scheduler.Counter(),
		PublishErrors: scheduler.Metrics.PublishErrors.Load(),
		Skipped:       reader.Metrics.Skipped.Load(),
		Late:          scheduler.Metrics.Late.Load(),
		Duration:      time.Since(start).Seconds(),
		Completed:     ctx.Err() == nil && buffer.Metrics.ReadErrors.Load() == 0,
	}
	if buffer.Metrics.ReadErrors.Load() > 0 {
		err = fmt.Errorf("replay stopped early: failed reading source '%s'", cfg.Source)
	}

	logctx.LogEvent(ctx, global.VerbosityStandard, global.InfoLog,
		"Replay finished: %d published, %d failed, %d skipped in %.3fs\n",
		result.Published, result.PublishErrors, result.Skipped, result.Duration)
	return
}

// Polls cond until true; false if ctx ends first
func waitFor(ctx context.Context, cond func() bool) (ok bool) {
	ticker := time.NewTicker(global.PollInterval / 10)
	defer ticker.Stop()

	for !cond() {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
	ok = true
	return
}
