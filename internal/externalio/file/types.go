// Dump log files: msgpack record writer, time-ordered readers, and list/CSV export
package file

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

var (
	ErrCorrupt    = errors.New("corrupt dump file")
	ErrNoFiles    = errors.New("no dump files found")
	ErrMixedTypes = errors.New("dump contains more than one message type")
	ErrMissingKey = errors.New("key not present in dumped message")
)

// One logged message as stored on disk
type Entry struct {
	Time    float64 `msgpack:"time"`    // unix seconds when the message was logged
	Topic   *string `msgpack:"topic"`   // nil when sent without a topic
	Name    string  `msgpack:"name"`    // message type name
	Payload []byte  `msgpack:"payload"` // encoded message
}

// Appends entries to a dump file. Not safe for concurrent use.
type OutModule struct {
	sink        io.WriteCloser
	encoder     *msgpack.Encoder
	batchBuffer []Entry
}

// Sequential reader over one dump file or a time-merged directory of them
type Reader struct {
	Namespace []string
	ctx       context.Context
	paths     []string
	minTime   float64
	maxTime   float64 // 0 or below is unlimited

	mutex     sync.Mutex
	streams   []*stream
	origin    float64
	hasOrigin bool
	finished  bool

	Metrics *ReaderMetrics
}

// Open file with its next undelivered entry
type stream struct {
	path    string
	file    *os.File
	decoder *msgpack.Decoder
	head    *Entry
	done    bool
}
