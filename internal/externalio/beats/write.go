package beats

import (
	"context"
	"fmt"
	"mclbus/internal/global"
	"mclbus/pkg/message"
	"os"
	"time"
)

// Builds the beats event for one received message
func newEvent(topic string, msg *message.Message, received time.Time) (event map[string]interface{}) {
	event = map[string]interface{}{
		// Minimum required fields
		"@timestamp": received.UTC(),
		"message":    msg.String(),

		"mcl": map[string]interface{}{
			"name":      msg.TypeName(),
			"topic":     topic,
			"timestamp": msg.Timestamp(),
			"fields":    msg.Fields().Map(),
		},
		"agent": map[string]interface{}{
			"program": global.ProgBaseName,
			"version": global.ProgVersion,
			"type":    "filebeat",
			"pid":     os.Getpid(),
		},
	}
	return
}

// Writes message and associated metadata to configured beats server
func (mod *OutModule) Write(ctx context.Context, topic string, msg *message.Message, received time.Time) (logsSent int, err error) {
	if mod == nil {
		return
	}
	if msg == nil {
		err = fmt.Errorf("cannot forward nil message")
		return
	}

	events := []interface{}{newEvent(topic, msg, received)}

	mod.mutex.Lock()
	defer mod.mutex.Unlock()
	if mod.sink == nil {
		err = fmt.Errorf("beats connection to %s is closed", mod.endpoint)
		return
	}

	logsSent, err = mod.sink.Send(events)
	if err != nil {
		err = fmt.Errorf("failed sending to beats server %s: %w", mod.endpoint, err)
		return
	}
	return
}
