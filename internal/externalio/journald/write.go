package journald

import (
	"bytes"
	"context"
	"fmt"
	"mclbus/internal/global"
	"mclbus/pkg/message"
	"os"
	"strconv"
	"strings"
	"time"
)

// Informational syslog priority
const defaultPriority string = "6"

// Builds ordered export fields for one received message
func (mod *OutModule) newFields(topic string, msg *message.Message, received time.Time) (fields []field) {
	pid := strconv.Itoa(os.Getpid())

	fields = []field{
		{key: "__REALTIME_TIMESTAMP", val: strconv.FormatInt(received.UnixMicro(), 10)}, // Required field
		{key: "_BOOT_ID", val: mod.bootID},                                              // Required field
		{key: "PRIORITY", val: defaultPriority},
		{key: "SYSLOG_IDENTIFIER", val: global.ProgBaseName},
		{key: "MESSAGE", val: msg.String()}, // Required field
		{key: "SYSLOG_PID", val: pid},
		{key: "HOSTNAME", val: mod.hostname},
		{key: "MCL_NAME", val: msg.TypeName()},
		{key: "MCL_TOPIC", val: topic},
		{key: "MCL_TIMESTAMP", val: strconv.FormatFloat(msg.Timestamp(), 'f', 6, 64)},
	}
	return
}

// Key=val\n format, terminated by an empty line.
// Values holding newlines use the binary field form.
func formatExport(fields []field) (payload []byte) {
	var buf bytes.Buffer
	for _, field := range fields {
		if field.key == "" || field.val == "" {
			continue
		}

		if strings.Contains(field.val, "\n") {
			buf.WriteString(field.key)
			buf.WriteByte('\n')
			size := uint64(len(field.val))
			for shift := 0; shift < 64; shift += 8 {
				buf.WriteByte(byte(size >> shift)) // little-endian length
			}
			buf.WriteString(field.val)
			buf.WriteByte('\n')
			continue
		}

		buf.WriteString(field.key)
		buf.WriteByte('=')
		buf.WriteString(field.val)
		buf.WriteByte('\n')
	}
	// Terminate with double newline
	buf.WriteByte('\n')

	payload = buf.Bytes()
	return
}

// Writes message and associated metadata to the journal remote server
func (mod *OutModule) Write(ctx context.Context, topic string, msg *message.Message, received time.Time) (entriesSent int, err error) {
	if mod == nil {
		return
	}
	if msg == nil {
		err = fmt.Errorf("cannot forward nil message")
		return
	}

	payload := formatExport(mod.newFields(topic, msg, received))

	err = sendJournalExport(ctx, mod.sink, mod.url, payload)
	if err != nil {
		err = fmt.Errorf("failed sending '%s' message to journald: %w", msg.TypeName(), err)
		return
	}
	entriesSent = 1
	return
}

// Gracefully stops module
func (mod *OutModule) Shutdown() (err error) {
	if mod == nil {
		return
	}
	if mod.sink != nil {
		mod.sink.CloseIdleConnections()
	}
	return
}
