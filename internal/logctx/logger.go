// Context-carried event logger. Events are buffered and written by a watcher goroutine
package logctx

import (
	"context"
	"mclbus/internal/global"
	"sync"
	"time"
)

// Log Event Structure
type Event struct {
	Timestamp time.Time
	Severity  string
	Tags      []string
	Message   string
}

type Logger struct {
	ID         string
	CreatedAt  time.Time
	Done       <-chan struct{} // Watchers exit once closed and buffer is empty
	mutex      sync.Mutex      // protects pending and printLevel
	cond       *sync.Cond      // signals new events to watchers
	pending    []Event
	printLevel int
	wg         sync.WaitGroup // Holds callers in Wait until watchers are done
}

// Creates a logger that records events at or below logLevel (errors always recorded)
func NewLogger(id string, logLevel int, done <-chan struct{}) (logger *Logger) {
	logger = &Logger{
		ID:         id,
		CreatedAt:  time.Now(),
		Done:       done,
		printLevel: logLevel,
	}
	logger.cond = sync.NewCond(&logger.mutex)
	return
}

// Creates a logger and embeds it in a context derived from baseCtx
func New(baseCtx context.Context, id string, logLevel int, done <-chan struct{}) (ctxLogger context.Context) {
	ctxLogger = WithLogger(baseCtx, NewLogger(id, logLevel, done))
	return
}

// Attach the logger to context
func WithLogger(ctx context.Context, logger *Logger) (ctxLogger context.Context) {
	ctxLogger = context.WithValue(ctx, global.LoggerKey, logger)
	return
}

// Extracts Logger from context or returns nil
func GetLogger(ctx context.Context) (logger *Logger) {
	if ctx == nil {
		return
	}
	logger, _ = ctx.Value(global.LoggerKey).(*Logger)
	return
}

// Change the level of the logger in context (no-op without a logger)
func SetLogLevel(ctx context.Context, newLevel int) {
	logger := GetLogger(ctx)
	if logger == nil {
		return
	}
	logger.mutex.Lock()
	logger.printLevel = newLevel
	logger.mutex.Unlock()
}

// Current recording level
func (logger *Logger) Level() (level int) {
	logger.mutex.Lock()
	level = logger.printLevel
	logger.mutex.Unlock()
	return
}

// Number of events not yet written by a watcher
func (logger *Logger) Pending() (count int) {
	logger.mutex.Lock()
	count = len(logger.pending)
	logger.mutex.Unlock()
	return
}

// Hold caller until all watchers have exited
func (logger *Logger) Wait() {
	logger.wg.Wait()
}

// Wakes any watcher blocked waiting for events (required after closing Done)
func (logger *Logger) Wake() {
	logger.mutex.Lock()
	logger.cond.Broadcast()
	logger.mutex.Unlock()
}
