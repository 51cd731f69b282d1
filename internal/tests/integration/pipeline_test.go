// Integration tests for the record and replay pipelines
package integration

import (
	"bytes"
	"context"
	"fmt"
	"mclbus/internal/externalio/file"
	"mclbus/internal/global"
	"mclbus/internal/logctx"
	"mclbus/internal/player"
	"mclbus/internal/recorder"
	"mclbus/pkg/connection"
	"mclbus/pkg/message"
	"mclbus/pkg/transport"
	"path/filepath"
	"runtime/debug"
	"strings"
	"testing"
	"time"
)

// Records live traffic to a dump, then replays the dump back onto the bus
func TestRecordReplayPipeline(t *testing.T) {
	defer func() {
		if fatalError := recover(); fatalError != nil {
			stack := debug.Stack()
			if !strings.Contains(fmt.Sprintf("%v", fatalError), "test timed out after") {
				t.Fatalf("Error: panic in integration test: %v\n%s\n", fatalError, stack)
			}
		}
	}()

	message.Clear()
	t.Cleanup(message.Clear)

	const count = 6
	const gap = 20 * time.Millisecond

	// Setup logging with in memory
	logVerbosity := 1 // Set to standard for tests
	globalCtx, globalCancel := context.WithCancel(context.Background())
	defer globalCancel()
	globalCtx = logctx.New(globalCtx, "global", logVerbosity, globalCtx.Done())
	globalCtx = logctx.AppendCtxTag(globalCtx, global.NSTest)

	definitions := []message.Definition{
		{Name: "Track", Mandatory: []string{"seq"}, Endpoint: connection.Endpoint{Address: "127.0.0.1", Port: 46901}},
	}
	dumpPath := filepath.Join(t.TempDir(), "bus.dump")

	// Record
	recDaemon := recorder.NewDaemon(recorder.Config{
		Messages:       definitions,
		OutputFilePath: dumpPath,
	})
	err := recDaemon.Start(globalCtx)
	if err != nil {
		t.Fatalf("expected no error starting record daemon, but got '%v'", err)
	}

	publishSequence(t, globalCtx, "Track", "nav", count, gap)

	recorded := eventually(3*time.Second, func() bool {
		return recDaemon.Output.Metrics.ReceivedMessages.Load() == count
	})
	recDaemon.Shutdown()
	if !recorded {
		t.Fatalf("expected %d recorded messages, but got '%d'", count, recDaemon.Output.Metrics.ReceivedMessages.Load())
	}

	// Inspect the dump
	var csvOut bytes.Buffer
	rows, err := file.DumpToCSV(globalCtx, dumpPath, &csvOut, []string{"seq", "label"}, 0, 0)
	if err != nil {
		t.Fatalf("expected no error exporting CSV, but got '%v'", err)
	}
	if rows != count {
		t.Fatalf("expected %d CSV rows, but got '%d'", count, rows)
	}
	lines := strings.Split(strings.TrimSpace(csvOut.String()), "\n")
	if lines[0] != "seq,label" || lines[1] != "0,step" {
		t.Fatalf("expected header and first row, but got '%v'", lines[:2])
	}

	// Replay onto a fresh listener
	listener, err := transport.NewMessageListener(globalCtx, "Track")
	if err != nil {
		t.Fatalf("expected no error opening listener, but got '%v'", err)
	}
	defer listener.Close()

	var received collector
	listener.Subscribe(transport.NewMessageCallback(received.add))

	result, err := player.Run(globalCtx, player.Config{
		Messages: definitions,
		Source:   dumpPath,
		Speed:    2,
	})
	if err != nil {
		t.Fatalf("expected no error replaying, but got '%v'", err)
	}
	if !result.Completed || result.Published != count || result.PublishErrors != 0 {
		t.Fatalf("expected complete replay of %d messages, but got '%+v'", count, result)
	}

	// Recorded spacing is halved, never collapsed to zero
	minimum := (gap * (count - 1)).Seconds() / 4
	if result.Duration < minimum {
		t.Fatalf("expected replay to last at least %.3fs, but got '%.3f'", minimum, result.Duration)
	}

	if !eventually(2*time.Second, func() bool { return received.len() == count }) {
		t.Fatalf("expected %d replayed deliveries, but got '%d'", count, received.len())
	}

	for i, delivery := range received.snapshot() {
		if delivery.Topic != "nav" {
			t.Fatalf("expected topic 'nav', but got '%s'", delivery.Topic)
		}
		seq, ok := delivery.Message.Get("seq")
		if !ok {
			t.Fatalf("expected seq field on delivery %d", i)
		}
		if seq != int64(i) {
			t.Fatalf("expected seq %d, but got '%v'", i, seq)
		}
	}
}

// Replaying a dump whose type is missing from the definitions skips every record
func TestReplayUnknownType(t *testing.T) {
	message.Clear()
	t.Cleanup(message.Clear)

	ctx := logctx.AppendCtxTag(context.Background(), global.NSTest)
	dumpPath := filepath.Join(t.TempDir(), "bus.dump")

	// Write a dump with one type, replay with another
	_, err := message.Define("Ghost", nil, connection.Endpoint{Address: "127.0.0.1", Port: 46902})
	if err != nil {
		t.Fatalf("expected no error defining type, but got '%v'", err)
	}
	out, err := file.NewOutput(dumpPath)
	if err != nil {
		t.Fatalf("expected no error opening dump, but got '%v'", err)
	}
	for i := range 3 {
		msg, _ := message.New("Ghost")
		entry, err := file.NewEntry("", msg, time.Unix(int64(1000+i), 0))
		if err != nil {
			t.Fatalf("expected no error building entry, but got '%v'", err)
		}
		if _, err = out.Write(ctx, entry); err != nil {
			t.Fatalf("expected no error writing entry, but got '%v'", err)
		}
	}
	if err = out.Shutdown(); err != nil {
		t.Fatalf("expected no error closing dump, but got '%v'", err)
	}
	message.Clear()

	result, err := player.Run(ctx, player.Config{
		Messages: []message.Definition{{Name: "Other", Endpoint: connection.Endpoint{Address: "127.0.0.1", Port: 46903}}},
		Source:   dumpPath,
	})
	if err != nil {
		t.Fatalf("expected no error, but got '%v'", err)
	}
	if result.Published != 0 || result.Skipped != 3 || !result.Completed {
		t.Fatalf("expected 3 skipped and none published, but got '%+v'", result)
	}
}
