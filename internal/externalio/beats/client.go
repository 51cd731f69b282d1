package beats

import (
	"fmt"
	"net"

	lumberjack "github.com/elastic/go-lumber/client/v2"
)

// Opens the lumberjack connection, swapped out in tests
var dial = func(endpoint string) (client sender, err error) {
	syncClient, err := lumberjack.SyncDial(endpoint,
		lumberjack.CompressionLevel(eventCompression),
		lumberjack.Timeout(dialTimeout))
	if err != nil {
		return
	}
	client = syncClient
	return
}

// Connects to a beats server at host:port. Empty endpoint disables the output (nil module, nil error).
func NewOutput(endpoint string) (module *OutModule, err error) {
	if endpoint == "" {
		return
	}

	host, port, err := net.SplitHostPort(endpoint)
	if err != nil {
		err = fmt.Errorf("invalid beats address '%s': %w", endpoint, err)
		return
	}
	if host == "" || port == "" {
		err = fmt.Errorf("invalid beats address '%s': host and port are required", endpoint)
		return
	}

	client, err := dial(endpoint)
	if err != nil {
		err = fmt.Errorf("failed connecting to beats server %s: %w", endpoint, err)
		return
	}

	module = &OutModule{
		sink:     client,
		endpoint: endpoint,
	}
	return
}

// Closes the connection. Safe on a nil module and when called twice.
func (mod *OutModule) Shutdown() (err error) {
	if mod == nil {
		return
	}

	mod.mutex.Lock()
	defer mod.mutex.Unlock()

	if mod.sink == nil {
		return
	}
	err = mod.sink.Close()
	mod.sink = nil
	if err != nil {
		err = fmt.Errorf("failed closing beats connection to %s: %w", mod.endpoint, err)
	}
	return
}
