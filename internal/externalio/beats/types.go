// Forwards recorded messages to a Logstash/Beats (lumberjack v2) server
package beats

import (
	"sync"
	"time"
)

const (
	dialTimeout      time.Duration = 3 * time.Second
	eventCompression int           = 3 // zlib level, events are repetitive JSON
)

// Sending half of the lumberjack client
type sender interface {
	Send(data []interface{}) (int, error)
	Close() error
}

type OutModule struct {
	mutex    sync.Mutex // guards sink across Write and Shutdown
	sink     sender
	endpoint string
}
