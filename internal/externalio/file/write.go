package file

import (
	"context"
	"fmt"
	"mclbus/pkg/message"
	"os"
	"sort"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Flush threshold for buffered entries
const batchSize int = 20

// Creates new file output module. Returns nil nil if no path.
func NewOutput(filePath string) (module *OutModule, err error) {
	if filePath == "" {
		return
	}

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0640)
	if err != nil {
		return
	}

	module = &OutModule{
		sink:        file,
		encoder:     msgpack.NewEncoder(file),
		batchBuffer: make([]Entry, 0, batchSize),
	}
	return
}

// Builds the on-disk entry for a received message
func NewEntry(topic string, msg *message.Message, received time.Time) (entry Entry, err error) {
	if msg == nil {
		err = fmt.Errorf("cannot log nil message")
		return
	}

	payload, err := msg.Encode()
	if err != nil {
		err = fmt.Errorf("failed encoding '%s' message: %w", msg.TypeName(), err)
		return
	}

	entry = Entry{
		Time:    float64(received.UnixNano()) / float64(time.Second),
		Name:    msg.TypeName(),
		Payload: payload,
	}
	if topic != "" {
		entry.Topic = &topic
	}
	return
}

// Buffers entry and writes out a batch once enough accumulate
func (mod *OutModule) Write(ctx context.Context, entry Entry) (entriesWritten int, err error) {
	if mod == nil {
		return
	}

	if entry.Name == "" {
		err = fmt.Errorf("entry has no message type name")
		return
	}

	// Buffer small amount to reorder and write in batches
	mod.batchBuffer = append(mod.batchBuffer, entry)

	if len(mod.batchBuffer) >= batchSize {
		entriesWritten, err = mod.FlushBuffer()
		if err != nil {
			return
		}
	}
	return
}

// Flushes entry buffer to the file, oldest first
func (mod *OutModule) FlushBuffer() (flushedCnt int, err error) {
	if mod == nil || len(mod.batchBuffer) == 0 {
		return
	}

	// Listeners for different types deliver concurrently, restore time order within the batch
	sort.SliceStable(mod.batchBuffer, func(i, j int) bool {
		return mod.batchBuffer[i].Time < mod.batchBuffer[j].Time
	})

	for _, entry := range mod.batchBuffer {
		err = mod.encoder.Encode(&entry)
		if err != nil {
			err = fmt.Errorf("failed writing dump entry: %w", err)
			// Keep unwritten entries for the next flush
			mod.batchBuffer = append(mod.batchBuffer[:0], mod.batchBuffer[flushedCnt:]...)
			return
		}
		flushedCnt++
	}

	// All writes succeeded, empty buffer
	mod.batchBuffer = mod.batchBuffer[:0]
	return
}

// Gracefully stops module, flushing pending entries
func (mod *OutModule) Shutdown() (err error) {
	if mod == nil {
		return
	}

	_, err = mod.FlushBuffer()
	if mod.sink != nil {
		closeErr := mod.sink.Close()
		if err == nil {
			err = closeErr
		}
	}
	return
}
