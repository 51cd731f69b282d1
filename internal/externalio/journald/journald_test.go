package journald

import (
	"context"
	"encoding/binary"
	"io"
	"mclbus/pkg/connection"
	"mclbus/pkg/message"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestNewOutput_Invalid(t *testing.T) {
	mod, err := NewOutput("")
	if mod != nil || err != nil {
		t.Fatalf("expected nil module and nil error for empty URL, but got '%v' '%v'", mod, err)
	}

	tests := []struct {
		name     string
		endpoint string
	}{
		{"bad scheme", "ftp://127.0.0.1:19532"},
		{"unparsable", "http://[::1"},
		{"unreachable", "http://127.0.0.1:1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewOutput(tt.endpoint)
			if err == nil {
				t.Fatalf("expected error, but got nil")
			}
		})
	}
}

func TestFormatExport(t *testing.T) {
	payload := formatExport([]field{
		{key: "MESSAGE", val: "hello"},
		{key: "EMPTY", val: ""},
		{key: "MULTI", val: "a\nb"},
	})

	want := "MESSAGE=hello\nMULTI\n"
	if !strings.HasPrefix(string(payload), want) {
		t.Fatalf("expected prefix %q, but got '%q'", want, payload)
	}
	rest := payload[len(want):]
	size := binary.LittleEndian.Uint64(rest[:8])
	if size != 3 {
		t.Fatalf("expected binary length 3, but got '%d'", size)
	}
	if string(rest[8:]) != "a\nb\n\n" {
		t.Fatalf("expected binary value and terminator, but got '%q'", rest[8:])
	}
	if strings.Contains(string(payload), "EMPTY") {
		t.Fatalf("expected empty field skipped, but got '%q'", payload)
	}
}

func TestWrite(t *testing.T) {
	message.Clear()
	t.Cleanup(message.Clear)
	if _, err := message.Define("Status", []string{"state"}, connection.Endpoint{Address: "127.0.0.1", Port: 46511}); err != nil {
		t.Fatalf("expected no error defining type, but got '%v'", err)
	}

	var mutex sync.Mutex
	var bodies []string
	status := http.StatusAccepted
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/upload" || r.Header.Get("Content-Type") != exportContentType {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		body, _ := io.ReadAll(r.Body)
		mutex.Lock()
		defer mutex.Unlock()
		if len(body) > 0 {
			bodies = append(bodies, string(body))
		}
		if len(body) > 0 && status != http.StatusAccepted {
			http.Error(w, "journal full", status)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	mod, err := NewOutput(server.URL)
	if err != nil {
		t.Fatalf("expected no error, but got '%v'", err)
	}
	defer mod.Shutdown()

	msg, err := message.NewFromPairs("Status", message.Field{Key: "state", Value: "ok"})
	if err != nil {
		t.Fatalf("expected no error creating message, but got '%v'", err)
	}
	received := time.Unix(1700000000, 5000)

	sent, err := mod.Write(context.Background(), "health", msg, received)
	if err != nil || sent != 1 {
		t.Fatalf("expected one entry sent, but got %d '%v'", sent, err)
	}

	mutex.Lock()
	body := bodies[0]
	mutex.Unlock()
	for _, line := range []string{
		"__REALTIME_TIMESTAMP=1700000000000005\n",
		"SYSLOG_IDENTIFIER=mclbus\n",
		"MCL_NAME=Status\n",
		"MCL_TOPIC=health\n",
	} {
		if !strings.Contains(body, line) {
			t.Fatalf("expected body to contain %q, but got '%q'", line, body)
		}
	}
	if !strings.HasSuffix(body, "\n\n") {
		t.Fatalf("expected entry terminated by empty line, but got '%q'", body)
	}

	mutex.Lock()
	status = http.StatusServiceUnavailable
	mutex.Unlock()
	_, err = mod.Write(context.Background(), "", msg, received)
	if err == nil || !strings.Contains(err.Error(), "journal full") {
		t.Fatalf("expected status error with body, but got '%v'", err)
	}

	_, err = mod.Write(context.Background(), "", nil, received)
	if err == nil {
		t.Fatalf("expected error for nil message, but got nil")
	}

	var nilMod *OutModule
	if sent, err = nilMod.Write(context.Background(), "", msg, received); sent != 0 || err != nil {
		t.Fatalf("expected no-op on nil module, but got %d '%v'", sent, err)
	}
}
