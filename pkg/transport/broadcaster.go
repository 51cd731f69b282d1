// Topic-filtered publish/subscribe over multicast datagrams
package transport

import (
	"context"
	"fmt"
	"mclbus/internal/global"
	"mclbus/internal/logctx"
	"mclbus/internal/network"
	"mclbus/pkg/connection"
	"mclbus/pkg/message"
	"net"
	"sync"
	"sync/atomic"
)

// Sends datagrams to one endpoint
type Broadcaster struct {
	Namespace []string
	ctx       context.Context
	endpoint  connection.Endpoint
	topic     string // default topic for Publish

	mutex  sync.RWMutex // guards conn against concurrent Close
	conn   *net.UDPConn
	dest   *net.UDPAddr
	closed bool

	maxPayload int // hard datagram limit
	mtuPayload int // largest unfragmented payload

	counter atomic.Uint64
	Metrics *BroadcastMetrics
}

// Opens a sending socket for the endpoint
func NewBroadcaster(ctx context.Context, endpoint connection.Endpoint, topic string) (broadcaster *Broadcaster, err error) {
	endpoint, err = endpoint.WithDefaults()
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrIO, err)
		return
	}

	conn, err := network.OpenSender(endpoint)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrIO, err)
		return
	}

	broadcaster = &Broadcaster{
		Namespace:  append(logctx.GetTagList(ctx), global.NSBroadcast, endpoint.String()),
		endpoint:   endpoint,
		topic:      topic,
		conn:       conn,
		dest:       endpoint.UDPAddr(),
		maxPayload: network.MaxDatagramPayload(endpoint),
		Metrics:    &BroadcastMetrics{},
	}
	broadcaster.ctx = logctx.OverwriteCtxTag(ctx, broadcaster.Namespace)

	broadcaster.mtuPayload, err = network.FindSendingMaxUDPPayload(endpoint)
	if err != nil {
		// Only used for fragmentation accounting
		logctx.LogEvent(broadcaster.ctx, global.VerbosityProgress, global.WarnLog,
			"Could not determine path MTU: %v\n", err)
		broadcaster.mtuPayload = broadcaster.maxPayload
		err = nil
	}

	logctx.LogEvent(broadcaster.ctx, global.VerbosityDebug, global.InfoLog,
		"Opened broadcaster (default topic '%s', unfragmented payload limit %d bytes)\n", topic, broadcaster.mtuPayload)
	return
}

func (broadcaster *Broadcaster) Topic() string {
	return broadcaster.topic
}

func (broadcaster *Broadcaster) Endpoint() connection.Endpoint {
	return broadcaster.endpoint
}

func (broadcaster *Broadcaster) IsOpen() (open bool) {
	broadcaster.mutex.RLock()
	open = !broadcaster.closed
	broadcaster.mutex.RUnlock()
	return
}

// Number of successful publishes
func (broadcaster *Broadcaster) Counter() uint64 {
	return broadcaster.counter.Load()
}

// Publishes with the default topic
func (broadcaster *Broadcaster) Publish(payload any) (err error) {
	err = broadcaster.PublishTopic(payload, broadcaster.topic)
	return
}

// Publishes raw bytes or a message (encoded) under topic
func (broadcaster *Broadcaster) PublishTopic(payload any, topic string) (err error) {
	broadcaster.mutex.RLock()
	defer broadcaster.mutex.RUnlock()

	if broadcaster.closed {
		err = ErrClosed
		return
	}

	data, err := payloadBytes(payload)
	if err != nil {
		broadcaster.Metrics.Rejected.Add(1)
		return
	}

	datagram, err := encodeEnvelope(topic, data)
	if err != nil {
		broadcaster.Metrics.Rejected.Add(1)
		err = fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		return
	}
	if len(datagram) > broadcaster.maxPayload {
		broadcaster.Metrics.Rejected.Add(1)
		err = fmt.Errorf("%w: %d bytes (limit %d)", ErrPayloadTooLarge, len(datagram), broadcaster.maxPayload)
		return
	}

	_, err = broadcaster.conn.WriteToUDP(datagram, broadcaster.dest)
	if err != nil {
		broadcaster.Metrics.SendErrors.Add(1)
		err = fmt.Errorf("%w: send to %s: %w", ErrIO, broadcaster.endpoint.String(), err)
		return
	}

	if len(datagram) > broadcaster.mtuPayload {
		broadcaster.Metrics.Fragmented.Add(1)
	}
	broadcaster.Metrics.Bytes.Add(uint64(len(datagram)))
	broadcaster.Metrics.Published.Add(1)
	broadcaster.counter.Add(1)
	return
}

// Releases the socket, true only on the first call
func (broadcaster *Broadcaster) Close() (closed bool) {
	broadcaster.mutex.Lock()
	defer broadcaster.mutex.Unlock()

	if broadcaster.closed {
		return
	}
	broadcaster.closed = true

	err := broadcaster.conn.Close()
	if err != nil {
		logctx.LogEvent(broadcaster.ctx, global.VerbosityStandard, global.WarnLog,
			"Error closing broadcaster socket: %v\n", err)
	}
	closed = true
	return
}

// Accepts []byte or a message (encoded on the fly)
func payloadBytes(payload any) (data []byte, err error) {
	switch typed := payload.(type) {
	case []byte:
		if typed == nil {
			err = fmt.Errorf("%w: nil byte slice", ErrInvalidPayload)
			return
		}
		data = typed
	case *message.Message:
		if typed == nil {
			err = fmt.Errorf("%w: nil message", ErrInvalidPayload)
			return
		}
		data, err = typed.Encode()
		if err != nil {
			err = fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}
	case message.Message:
		data, err = typed.Encode()
		if err != nil {
			err = fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}
	default:
		err = fmt.Errorf("%w: got %T", ErrInvalidPayload, payload)
	}
	return
}
