package recorder

import (
	"context"
	"fmt"
	"mclbus/internal/externalio/beats"
	"mclbus/internal/externalio/file"
	"mclbus/internal/externalio/journald"
	"mclbus/internal/global"
	"mclbus/internal/logctx"
	"mclbus/internal/metrics"
	"mclbus/internal/queue/fifo"
	"mclbus/pkg/transport"
	"runtime/debug"
	"time"
)

// Interval for flushing partially filled file batches
const flushInterval time.Duration = 500 * time.Millisecond

// Opens configured outputs for a new worker
func NewOutput(namespace []string, inQueue *fifo.Queue[transport.MessageDelivery], filePath string, beatsAddress string, journaldURL string) (new *Output, err error) {
	new = &Output{
		Namespace: append(append([]string(nil), namespace...), global.NSOut),
		Inbox:     inQueue,
		Metrics:   &OutputMetrics{},
	}

	new.FileMod, err = file.NewOutput(filePath)
	if err != nil {
		err = fmt.Errorf("failed opening dump file output: %w", err)
		return
	}

	new.BeatsMod, err = beats.NewOutput(beatsAddress)
	if err != nil {
		new.FileMod.Shutdown()
		err = fmt.Errorf("failed opening beats output: %w", err)
		return
	}

	new.JrnlMod, err = journald.NewOutput(journaldURL)
	if err != nil {
		new.FileMod.Shutdown()
		new.BeatsMod.Shutdown()
		err = fmt.Errorf("failed opening journald output: %w", err)
		return
	}
	return
}

// Take received messages and write to configured outputs
func (output *Output) Run(ctx context.Context) {
	ctx = logctx.OverwriteCtxTag(ctx, output.Namespace)

	lastFlush := time.Now()
	for {
		select {
		case <-ctx.Done():
			output.flush(ctx)
			return
		default:
		}

		delivery, ok := output.Inbox.PopTimeout(ctx, global.PollInterval)
		if ok {
			output.write(ctx, delivery)
		}

		// Buffer might never fill and flush if we don't get enough messages
		if time.Since(lastFlush) >= flushInterval {
			output.flush(ctx)
			lastFlush = time.Now()
		}
	}
}

func (output *Output) write(ctx context.Context, delivery transport.MessageDelivery) {
	// Record panics and continue output
	defer func() {
		if fatalError := recover(); fatalError != nil {
			stack := debug.Stack()
			logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog,
				"panic in output worker thread: %v\n%s", fatalError, stack)
		}
	}()

	output.Metrics.ReceivedMessages.Add(1)

	if output.FileMod != nil {
		entry, err := file.NewEntry(delivery.Topic, delivery.Message, delivery.Received)
		if err != nil {
			output.Metrics.FailedWrites.Add(1)
			logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog,
				"Failed to prepare message for file output: %v\n", err)
		} else {
			n, err := output.FileMod.Write(ctx, entry)
			if err != nil {
				output.Metrics.FailedWrites.Add(1)
				logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog,
					"Failed to write message(s) to file output: %v\n", err)
			}
			output.Metrics.SuccessfulFileWrites.Add(uint64(n))
		}
	}

	n, err := output.BeatsMod.Write(ctx, delivery.Topic, delivery.Message, delivery.Received)
	if err != nil {
		output.Metrics.FailedWrites.Add(1)
		logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog,
			"Failed to write message(s) to beats output: %v\n", err)
	}
	output.Metrics.SuccessfulBeatsWrites.Add(uint64(n))

	n, err = output.JrnlMod.Write(ctx, delivery.Topic, delivery.Message, delivery.Received)
	if err != nil {
		output.Metrics.FailedWrites.Add(1)
		logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog,
			"Failed to write message(s) to journald output: %v\n", err)
	}
	output.Metrics.SuccessfulJrnlWrites.Add(uint64(n))
}

func (output *Output) flush(ctx context.Context) {
	n, err := output.FileMod.FlushBuffer()
	if err != nil {
		output.Metrics.FailedWrites.Add(1)
		logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog,
			"Failed to flush file output: %v\n", err)
	}
	output.Metrics.SuccessfulFileWrites.Add(uint64(n))
}

// Closes outputs, flushing pending file entries
func (output *Output) Shutdown() (err error) {
	fileErr := output.FileMod.Shutdown()
	beatsErr := output.BeatsMod.Shutdown()
	jrnlErr := output.JrnlMod.Shutdown()
	if fileErr != nil {
		err = fmt.Errorf("failed closing file output: %w", fileErr)
		return
	}
	if beatsErr != nil {
		err = fmt.Errorf("failed closing beats output: %w", beatsErr)
		return
	}
	if jrnlErr != nil {
		err = fmt.Errorf("failed closing journald output: %w", jrnlErr)
	}
	return
}

func (output *Output) CollectMetrics(interval time.Duration) (collection []metrics.Metric) {
	batch := metrics.NewBatch(output.Namespace, interval)

	batch.Add("received_messages", output.Metrics.ReceivedMessages.Swap(0), "count", metrics.Counter, "Messages taken from the output queue in the interval")
	batch.Add("file_writes", output.Metrics.SuccessfulFileWrites.Swap(0), "count", metrics.Counter, "Entries written to the dump file in the interval")
	batch.Add("beats_writes", output.Metrics.SuccessfulBeatsWrites.Swap(0), "count", metrics.Counter, "Events accepted by the beats server in the interval")
	batch.Add("journald_writes", output.Metrics.SuccessfulJrnlWrites.Swap(0), "count", metrics.Counter, "Entries accepted by the journal remote server in the interval")
	batch.Add("failed_writes", output.Metrics.FailedWrites.Swap(0), "count", metrics.Counter, "Output errors in the interval")

	collection = batch.Metrics
	return
}
