package lifecycle

import (
	"context"
	"mclbus/internal/global"
	"mclbus/internal/logctx"
	"os"
	"os/signal"
	"syscall"
)

type DaemonLike interface {
	Shutdown()
}

// Signals that end the program
var exitSignals = []os.Signal{syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM, syscall.SIGHUP}

// Blocks until an exit signal arrives or ctx is done, then shuts the daemon down.
// Returns the received signal (nil when ctx ended first).
func SignalHandler(ctx context.Context, daemonManager DaemonLike) (received os.Signal) {
	// Channel for handling interrupt signals
	sigChan := make(chan os.Signal, 10)
	signal.Notify(sigChan, exitSignals...)
	defer signal.Stop(sigChan)

	select {
	case received = <-sigChan:
		logctx.LogEvent(ctx, global.VerbosityStandard, global.InfoLog, "Received signal: %v\n", received)
	case <-ctx.Done():
	}

	err := NotifyStopping(ctx)
	if err != nil {
		logctx.LogEvent(ctx, global.VerbosityStandard, global.WarnLog, "Systemd notify stopping failed: %v\n", err)
	}

	// Initiate daemon shutdown
	daemonManager.Shutdown()
	return
}

// Context cancelled on the first exit signal
func SignalContext(parent context.Context) (ctx context.Context, stop context.CancelFunc) {
	ctx, stop = signal.NotifyContext(parent, exitSignals...)
	return
}
