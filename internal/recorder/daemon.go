// Daemon for continuous recording of bus messages to dump files and beats servers
package recorder

import (
	"context"
	"fmt"
	"mclbus/internal/atomics"
	"mclbus/internal/externalio/server"
	"mclbus/internal/global"
	"mclbus/internal/logctx"
	"mclbus/internal/queue/fifo"
	"mclbus/pkg/message"
	"mclbus/pkg/transport"
	"net/http"
	"time"
)

// Create new recorder daemon instance
func NewDaemon(cfg Config) (new *Daemon) {
	ctx, cancel := context.WithCancel(context.Background())
	new = &Daemon{
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
	}
	return
}

// Starts listeners and the output worker in background - gracefully shuts down if startup error is encountered
func (daemon *Daemon) Start(globalCtx context.Context) (err error) {
	// New context for the daemon
	daemon.ctx, daemon.cancel = context.WithCancel(context.Background())
	daemon.ctx = logctx.WithLogger(daemon.ctx, logctx.GetLogger(globalCtx))

	// Top level tag for daemon logs
	daemon.ctx = logctx.AppendCtxTag(daemon.ctx, global.NSRecord)

	logctx.LogEvent(daemon.ctx, global.VerbosityStandard, global.InfoLog, "Starting...\n")

	daemon.cfg.setDefaults()

	for _, definition := range daemon.cfg.Messages {
		_, err = message.Ensure(definition)
		if err != nil {
			err = fmt.Errorf("failed registering message type: %w", err)
			return
		}
	}

	// Output queue and worker
	daemon.Queue, err = fifo.New[transport.MessageDelivery](logctx.GetTagList(daemon.ctx), daemon.cfg.QueueSize)
	if err != nil {
		err = fmt.Errorf("failed creating output queue: %w", err)
		return
	}

	daemon.Output, err = NewOutput(logctx.GetTagList(daemon.ctx), daemon.Queue, daemon.cfg.OutputFilePath, daemon.cfg.BeatsEndpoint, daemon.cfg.JournaldURL)
	if err != nil {
		err = fmt.Errorf("failed starting output: %w", err)
		return
	}
	outputCtx, outputCancel := context.WithCancel(daemon.ctx)
	daemon.wg.Add(1)
	go func() {
		defer daemon.wg.Done()
		defer outputCancel()
		daemon.Output.Run(outputCtx)
	}()
	daemon.stopOutput = outputCancel

	// One listener per recorded type
	collect := transport.NewMessageCallback(daemon.enqueue)
	for _, typeName := range daemon.cfg.Types {
		listenCtx := logctx.AppendCtxTag(daemon.ctx, typeName)

		var listener *transport.MessageListener
		listener, err = transport.NewMessageListener(listenCtx, typeName, daemon.cfg.Topics...)
		if err != nil {
			err = fmt.Errorf("failed starting listener for '%s': %w", typeName, err)
			daemon.Shutdown()
			return
		}
		listener.Subscribe(collect)
		daemon.Listeners = append(daemon.Listeners, listener)

		logctx.LogEvent(listenCtx, global.VerbosityProgress, global.InfoLog,
			"Recording '%s' from %s\n", typeName, listener.Endpoint().String())
	}

	// Metrics Collector
	daemon.metricsCollector = NewGatherer(daemon,
		daemon.cfg.MetricCollectionInterval,
		daemon.cfg.MetricMaxAge)
	workerCtx := daemon.ctx
	daemon.wg.Add(1)
	go func() {
		defer daemon.wg.Done()
		daemon.metricsCollector.Run(workerCtx)
	}()
	daemon.MetricDataSearcher = daemon.metricsCollector.Registry.Search
	daemon.MetricDiscoverer = daemon.metricsCollector.Registry.Discover

	// Metric Server
	if daemon.cfg.MetricQueryServerEnabled {
		// Top level tag for metric server logs (copy so return doesn't strip ns tags)
		serverCtx := daemon.ctx
		serverCtx = logctx.AppendCtxTag(serverCtx, global.NSMetric)
		serverCtx = logctx.AppendCtxTag(serverCtx, global.NSMetricSrv)

		daemon.MetricServer, err = server.SetupListener(serverCtx,
			daemon.cfg.MetricQueryServerPort,
			daemon.MetricDataSearcher,
			daemon.MetricDiscoverer)
		if err != nil {
			err = fmt.Errorf("failed setting up metric query server: %w", err)
			daemon.Shutdown()
			return
		}
		daemon.wg.Add(1)
		go func() {
			defer daemon.wg.Done()
			server.Start(serverCtx, daemon.MetricServer)
		}()
	}

	logctx.LogEvent(daemon.ctx, global.VerbosityStandard, global.InfoLog, "Startup complete.\n")
	return
}

// Subscriber callback, never blocks the listener
func (daemon *Daemon) enqueue(delivery transport.MessageDelivery) {
	if !daemon.Queue.Push(delivery) {
		daemon.Dropped.Add(1)
		logctx.LogEvent(daemon.ctx, global.VerbosityStandard, global.WarnLog,
			"Output queue full, dropped '%s' message\n", delivery.Message.TypeName())
	}
}

// Blocking daemon waiter
func (daemon *Daemon) Run() {
	<-daemon.ctx.Done()
}

// Gracefully shutdown listeners and the output worker (errors are printed to program log buffer)
func (daemon *Daemon) Shutdown() {
	logctx.LogEvent(daemon.ctx, global.VerbosityStandard, global.InfoLog,
		"Daemon shutdown started...\n")

	// Stop metric server
	if daemon.MetricServer != nil {
		err := daemon.MetricServer.Shutdown(daemon.ctx)
		if err != nil && err != http.ErrServerClosed {
			logctx.LogEvent(daemon.ctx, global.VerbosityStandard, global.WarnLog,
				"metric HTTP server did not shutdown gracefully: %v\n", err)
		}
	}

	// Stop ingesting
	for _, listener := range daemon.Listeners {
		listener.Close()
	}

	// Let the output worker drain what was already received
	if daemon.Queue != nil && daemon.Output != nil {
		success, last := atomics.WaitUntilZero(daemon.ctx, &daemon.Queue.Metrics.Depth, global.RecordShutdownTimeout)
		if !success {
			logctx.LogEvent(daemon.ctx, global.VerbosityStandard, global.WarnLog,
				"output queue did not empty in time: dropped %d messages\n", last)
		}
	}
	if daemon.stopOutput != nil {
		daemon.stopOutput()
	}

	// Stop the run loop after the pipeline is drained and stopped
	daemon.cancel()

	// Wait for all workers to finish (with timeout)
	done := make(chan struct{})
	go func() {
		daemon.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(global.RecordShutdownTimeout):
		logctx.LogEvent(daemon.ctx, global.VerbosityStandard, global.WarnLog,
			"Timeout: record daemon did not shutdown within %v seconds\n",
			global.RecordShutdownTimeout.Seconds())
	}

	// Outputs close after the worker exits so the final flush lands
	if daemon.Output != nil {
		err := daemon.Output.Shutdown()
		if err != nil {
			logctx.LogEvent(daemon.ctx, global.VerbosityStandard, global.ErrorLog,
				"%v\n", err)
		}
	}

	logctx.LogEvent(daemon.ctx, global.VerbosityStandard, global.InfoLog,
		"Daemon shutdown completed\n")
}
