package logctx

import (
	"bytes"
	"context"
	"mclbus/internal/global"
	"strings"
	"testing"
	"time"
)

func TestLogEvent(t *testing.T) {
	tests := []struct {
		name          string
		logLevel      int
		eventLevel    int
		severity      string
		message       string
		vars          []any
		expectEvents  int
		expectMessage string
	}{
		{
			name:          "event level <= print level is logged",
			logLevel:      2,
			eventLevel:    1,
			severity:      global.InfoLog,
			message:       "hello world",
			expectEvents:  1,
			expectMessage: "hello world",
		},
		{
			name:         "event level > print level is dropped",
			logLevel:     1,
			eventLevel:   3,
			severity:     global.InfoLog,
			message:      "should not appear",
			expectEvents: 0,
		},
		{
			name:          "error severity bypasses level filtering",
			logLevel:      0,
			eventLevel:    5,
			severity:      global.ErrorLog,
			message:       "failure",
			expectEvents:  1,
			expectMessage: "failure",
		},
		{
			name:          "formatting applied with vars",
			logLevel:      3,
			eventLevel:    1,
			severity:      global.WarnLog,
			message:       "value=%d topic=%s",
			vars:          []any{42, "A"},
			expectEvents:  1,
			expectMessage: "value=42 topic=A",
		},
		{
			name:          "percent without vars left untouched",
			logLevel:      3,
			eventLevel:    1,
			severity:      global.InfoLog,
			message:       "100% done",
			expectEvents:  1,
			expectMessage: "100% done",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			done := make(chan struct{})
			defer close(done)

			ctx := New(context.Background(), global.NSTest, tt.logLevel, done)
			logger := GetLogger(ctx)
			if logger == nil {
				t.Fatalf("expected logger in context, but got nil")
			}

			LogEvent(ctx, tt.eventLevel, tt.severity, tt.message, tt.vars...)

			if logger.Pending() != tt.expectEvents {
				t.Fatalf("expected %d events, but got %d", tt.expectEvents, logger.Pending())
			}
			if tt.expectEvents == 0 {
				return
			}

			event, ok := logger.next()
			if !ok {
				t.Fatalf("expected buffered event, but got none")
			}
			if event.Message != tt.expectMessage {
				t.Fatalf("expected message '%s', but got '%s'", tt.expectMessage, event.Message)
			}
			if event.Severity != tt.severity {
				t.Fatalf("expected severity '%s', but got '%s'", tt.severity, event.Severity)
			}
		})
	}
}

func TestLogEvent_NoLogger(t *testing.T) {
	// Must not panic
	LogEvent(context.Background(), global.VerbosityStandard, global.ErrorLog, "nobody listening %d\n", 1)
}

func TestSetLogLevel(t *testing.T) {
	done := make(chan struct{})
	defer close(done)

	ctx := New(context.Background(), global.NSTest, global.VerbosityNone, done)
	SetLogLevel(ctx, global.VerbosityDebug)

	if GetLogger(ctx).Level() != global.VerbosityDebug {
		t.Fatalf("expected level %d, but got %d", global.VerbosityDebug, GetLogger(ctx).Level())
	}
}

func TestEventFormat(t *testing.T) {
	ts := time.Date(2024, 3, 9, 10, 11, 12, 5000, time.UTC)

	tests := []struct {
		name     string
		event    Event
		expected string
	}{
		{
			name:     "all parts",
			event:    Event{Timestamp: ts, Tags: []string{"Recorder", "Listener"}, Severity: global.InfoLog, Message: "started\n"},
			expected: "[2024-03-09T10:11:12.000005000Z] [Recorder/Listener] [Info] started\n",
		},
		{
			name:     "no tags",
			event:    Event{Timestamp: ts, Severity: global.ErrorLog, Message: "boom"},
			expected: "[2024-03-09T10:11:12.000005000Z] [Error] boom",
		},
		{
			name:     "message only",
			event:    Event{Message: "plain"},
			expected: "plain",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.event.Format()
			if got != tt.expected {
				t.Fatalf("expected '%s', but got '%s'", tt.expected, got)
			}
		})
	}
}

func TestTags(t *testing.T) {
	base := context.Background()

	ctx := AppendCtxTag(base, "A")
	child := AppendCtxTag(ctx, "B")
	if strings.Join(GetTagList(child), "/") != "A/B" {
		t.Fatalf("expected tags 'A/B', but got '%v'", GetTagList(child))
	}
	if strings.Join(GetTagList(ctx), "/") != "A" {
		t.Fatalf("expected parent tags to stay 'A', but got '%v'", GetTagList(ctx))
	}

	popped := RemoveLastCtxTag(child)
	if strings.Join(GetTagList(popped), "/") != "A" {
		t.Fatalf("expected tags 'A' after pop, but got '%v'", GetTagList(popped))
	}

	empty := RemoveLastCtxTag(base)
	if len(GetTagList(empty)) != 0 {
		t.Fatalf("expected no tags, but got '%v'", GetTagList(empty))
	}

	over := OverwriteCtxTag(child, []string{"X"})
	if strings.Join(GetTagList(over), "/") != "X" {
		t.Fatalf("expected tags 'X', but got '%v'", GetTagList(over))
	}
}

func TestWatcher_DrainAndDedup(t *testing.T) {
	done := make(chan struct{})
	ctx := New(context.Background(), global.NSTest, global.VerbosityDebug, done)
	logger := GetLogger(ctx)

	var output bytes.Buffer

	const repeats = 11
	const msg = "duplicate-message\n"
	for i := 0; i < repeats; i++ {
		LogEvent(ctx, global.VerbosityStandard, global.InfoLog, msg)
	}
	LogEvent(ctx, global.VerbosityStandard, global.InfoLog, "final\n")

	// Events logged before Done closes must still be written
	StartWatcher(logger, &output)
	close(done)
	logger.Wake()
	logger.Wait()

	out := output.String()
	if strings.Count(out, "duplicate-message") != 2 {
		t.Fatalf("expected message once plus one suppression notice, but got:\n%s", out)
	}
	if !strings.Contains(out, "Suppressed 10 repeated messages") {
		t.Fatalf("expected suppression notice, but got:\n%s", out)
	}
	if !strings.Contains(out, "final") {
		t.Fatalf("expected final message, but got:\n%s", out)
	}
}
