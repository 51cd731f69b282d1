// Buffered replay of recorded bus traffic with original relative timing
package replay

import (
	"errors"
	"mclbus/internal/queue/fifo"
	"mclbus/pkg/message"
)

const DefaultSpeed float64 = 1.0

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrRunning         = errors.New("operation not permitted while running")
	ErrNotRewindable   = errors.New("source cannot be rewound")
)

// One logged message
type Record struct {
	Topic       string           // empty when recorded without a topic
	Message     *message.Message // decoded message
	ElapsedTime float64          // seconds since the start of the log
}

// Sequential record supplier. Read returns io.EOF once exhausted.
type Source interface {
	Read() (Record, error)
}

// Source that can restart from its first record
type Rewinder interface {
	Rewind() error
}

// Record queue shared by BufferData and ScheduleBroadcasts
type Queue = fifo.Queue[Record]
