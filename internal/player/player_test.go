package player

import (
	"context"
	"mclbus/internal/externalio/file"
	"mclbus/internal/global"
	"mclbus/internal/logctx"
	"mclbus/pkg/connection"
	"mclbus/pkg/message"
	"mclbus/pkg/transport"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func testCtx() context.Context {
	return logctx.AppendCtxTag(context.Background(), global.NSTest)
}

// Dump of count A messages spaced gap seconds apart
func writeDump(t *testing.T, path string, port int, count int, gap float64) (definitions []message.Definition) {
	t.Helper()
	message.Clear()
	t.Cleanup(message.Clear)

	definitions = []message.Definition{{Name: "A", Mandatory: []string{"n"}, Endpoint: connection.Endpoint{Address: "127.0.0.1", Port: port}}}
	if _, err := message.Ensure(definitions[0]); err != nil {
		t.Fatalf("expected no error defining type, but got '%v'", err)
	}

	out, err := file.NewOutput(path)
	if err != nil {
		t.Fatalf("expected no error opening output, but got '%v'", err)
	}
	for i := 0; i < count; i++ {
		msg, _ := message.NewFromPairs("A", message.Field{Key: "n", Value: i})
		entry, err := file.NewEntry("replayed", msg, time.Unix(1000, 0).Add(time.Duration(float64(i)*gap*float64(time.Second))))
		if err != nil {
			t.Fatalf("expected no error creating entry, but got '%v'", err)
		}
		out.Write(context.Background(), entry)
	}
	if err = out.Shutdown(); err != nil {
		t.Fatalf("expected no error closing output, but got '%v'", err)
	}
	return
}

func listen(t *testing.T, topic string) (received *atomic.Uint64) {
	t.Helper()
	listener, err := transport.NewMessageListener(testCtx(), "A", topic)
	if err != nil {
		t.Fatalf("expected no error opening listener, but got '%v'", err)
	}
	t.Cleanup(func() { listener.Close() })

	received = &atomic.Uint64{}
	listener.Subscribe(transport.NewMessageCallback(func(delivery transport.MessageDelivery) {
		received.Add(1)
	}))
	return
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "replay.json")
	os.WriteFile(path, []byte(`{
		"messages": [{"name": "A", "endpoint": {"address": "127.0.0.1", "port": 46700}}],
		"replay": {"source": "/data/dumps", "speed": 2.5, "bufferLength": 100, "minTime": 1, "maxTime": 9}
	}`), 0600)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("expected no error, but got '%v'", err)
	}
	config, err := cfg.NewPlayerConf()
	if err != nil {
		t.Fatalf("expected no error, but got '%v'", err)
	}
	if config.Source != "/data/dumps" || config.Speed != 2.5 || config.BufferLength != 100 || config.MinTime != 1 || config.MaxTime != 9 {
		t.Fatalf("expected replay section parsed, but got '%+v'", config)
	}

	_, err = JSONConfig{}.NewPlayerConf()
	if err == nil {
		t.Fatalf("expected error without message definitions")
	}
}

func TestSetDefaults(t *testing.T) {
	tests := []struct {
		name      string
		cfg       Config
		wantSpeed float64
		wantErr   bool
	}{
		{"default speed", Config{Source: "x"}, global.DefaultReplaySpeed, false},
		{"explicit speed", Config{Source: "x", Speed: 0.5}, 0.5, false},
		{"negative speed", Config{Source: "x", Speed: -1}, 0, true},
		{"negative buffer", Config{Source: "x", BufferLength: -1}, 0, true},
		{"no source", Config{}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.setDefaults()
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, but got '%v'", err)
			}
			if tt.cfg.Speed != tt.wantSpeed {
				t.Fatalf("expected speed %v, but got '%v'", tt.wantSpeed, tt.cfg.Speed)
			}
		})
	}
}

func TestRun_ReplaysDump(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.dump")
	definitions := writeDump(t, path, 46701, 10, 0.05)
	received := listen(t, "replayed")

	result, err := Run(testCtx(), Config{
		Messages:     definitions,
		Source:       path,
		Speed:        2,
		BufferLength: 4,
	})
	if err != nil {
		t.Fatalf("expected no error, but got '%v'", err)
	}
	if !result.Completed || result.Published != 10 {
		t.Fatalf("expected completed replay of 10, but got '%+v'", result)
	}
	// 0.45s of recorded gaps at double speed
	if result.Duration < 0.1 || result.Duration > 1.5 {
		t.Fatalf("expected about 0.225s of replay, but took '%.3f'", result.Duration)
	}

	deadline := time.Now().Add(time.Second)
	for received.Load() < 10 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if received.Load() != 10 {
		t.Fatalf("expected 10 deliveries, but got '%d'", received.Load())
	}
}

func TestRun_Window(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.dump")
	definitions := writeDump(t, path, 46702, 10, 0.01)

	result, err := Run(testCtx(), Config{
		Messages: definitions,
		Source:   path,
		MinTime:  0.025,
		MaxTime:  0.065,
	})
	if err != nil {
		t.Fatalf("expected no error, but got '%v'", err)
	}
	if result.Published != 4 {
		t.Fatalf("expected records 3..6 published, but got '%d'", result.Published)
	}
}

func TestRun_Interrupted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.dump")
	definitions := writeDump(t, path, 46703, 3, 30)

	ctx, cancel := context.WithTimeout(testCtx(), 300*time.Millisecond)
	defer cancel()

	start := time.Now()
	result, err := Run(ctx, Config{Messages: definitions, Source: path})
	if err != nil {
		t.Fatalf("expected no error, but got '%v'", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("expected prompt stop, but took %v", time.Since(start))
	}
	if result.Completed || result.Published != 1 {
		t.Fatalf("expected interrupted replay after first record, but got '%+v'", result)
	}
}

func TestRun_MissingSource(t *testing.T) {
	message.Clear()
	t.Cleanup(message.Clear)

	_, err := Run(testCtx(), Config{
		Messages: []message.Definition{{Name: "A", Endpoint: connection.Endpoint{Address: "127.0.0.1", Port: 46704}}},
		Source:   filepath.Join(t.TempDir(), "missing.dump"),
	})
	if err == nil {
		t.Fatalf("expected error for missing source, but got nil")
	}
}
