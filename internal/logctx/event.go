package logctx

import (
	"context"
	"fmt"
	"mclbus/internal/global"
	"strings"
	"time"
)

const timestampLayout string = "2006-01-02T15:04:05.000000000Z07:00"

// Entry for logging events. Silently dropped when ctx carries no logger.
func LogEvent(ctx context.Context, eventLevel int, severity string, message string, vars ...any) {
	logger := GetLogger(ctx)
	if logger == nil {
		return
	}

	text := message
	if len(vars) > 0 && strings.Contains(message, "%") {
		text = fmt.Sprintf(message, vars...)
	}

	logger.record(eventLevel, severity, GetTagList(ctx), text)
}

// Buffers event for watchers if level permits
func (logger *Logger) record(eventLevel int, severity string, tags []string, text string) {
	logger.mutex.Lock()
	defer logger.mutex.Unlock()

	if eventLevel > logger.printLevel && severity != global.ErrorLog {
		return
	}

	logger.pending = append(logger.pending, Event{
		Timestamp: time.Now(),
		Severity:  severity,
		Tags:      tags,
		Message:   text,
	})
	logger.cond.Signal()
}

// Stringify full event. Only present parts are printed; newlines are left to the message.
func (event Event) Format() (text string) {
	var parts []string
	if !event.Timestamp.IsZero() {
		parts = append(parts, "["+event.Timestamp.Format(timestampLayout)+"]")
	}
	if len(event.Tags) > 0 {
		parts = append(parts, "["+strings.Join(event.Tags, "/")+"]")
	}
	if event.Severity != "" {
		parts = append(parts, "["+event.Severity+"]")
	}
	if event.Message != "" {
		parts = append(parts, event.Message)
	}
	text = strings.Join(parts, " ")
	return
}
