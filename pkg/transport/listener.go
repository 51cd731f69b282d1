package transport

import (
	"context"
	"errors"
	"fmt"
	"mclbus/internal/global"
	"mclbus/internal/logctx"
	"mclbus/internal/network"
	"mclbus/pkg/connection"
	"net"
	"os"
	"runtime/debug"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// Receives datagrams on one endpoint and fans matching ones out to subscribers
type Listener struct {
	Namespace []string
	ctx       context.Context
	endpoint  connection.Endpoint
	topics    []string
	filter    map[string]struct{} // nil accepts everything

	conn        *net.UDPConn
	subscribers subscriberSet[Delivery]

	mutex  sync.Mutex // serializes Close
	closed atomic.Bool
	cancel context.CancelFunc
	wg     sync.WaitGroup

	counter atomic.Uint64
	Metrics *ListenMetrics
}

// Binds the endpoint and starts the dispatch goroutine.
// No topics accepts every datagram.
func NewListener(ctx context.Context, endpoint connection.Endpoint, topics ...string) (listener *Listener, err error) {
	endpoint, err = endpoint.WithDefaults()
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrIO, err)
		return
	}

	conn, err := network.ListenEndpoint(ctx, endpoint)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrIO, err)
		return
	}

	listener = &Listener{
		Namespace: append(logctx.GetTagList(ctx), global.NSListen, endpoint.String()),
		endpoint:  endpoint,
		topics:    slices.Clone(topics),
		conn:      conn,
		Metrics:   &ListenMetrics{},
	}
	if len(topics) > 0 {
		listener.filter = make(map[string]struct{}, len(topics))
		for _, topic := range topics {
			listener.filter[topic] = struct{}{}
		}
	}

	loopCtx, cancel := context.WithCancel(ctx)
	listener.cancel = cancel
	listener.ctx = logctx.OverwriteCtxTag(loopCtx, listener.Namespace)

	listener.wg.Add(1)
	go func() {
		defer listener.wg.Done()
		listener.run(listener.ctx)
	}()

	logctx.LogEvent(listener.ctx, global.VerbosityDebug, global.InfoLog,
		"Listening (topics %v)\n", topics)
	return
}

func (listener *Listener) Endpoint() connection.Endpoint {
	return listener.endpoint
}

// Topic filter, empty when accepting everything
func (listener *Listener) Topics() []string {
	return slices.Clone(listener.topics)
}

func (listener *Listener) IsOpen() bool {
	return !listener.closed.Load()
}

// Datagrams delivered to at least one subscriber
func (listener *Listener) Counter() uint64 {
	return listener.counter.Load()
}

// Adds a subscriber, false if already present or not comparable
func (listener *Listener) Subscribe(subscriber Subscriber) bool {
	return listener.subscribers.add(subscriber)
}

func (listener *Listener) Unsubscribe(subscriber Subscriber) bool {
	return listener.subscribers.remove(subscriber)
}

func (listener *Listener) IsSubscribed(subscriber Subscriber) bool {
	return listener.subscribers.contains(subscriber)
}

func (listener *Listener) NumSubscriptions() int {
	return listener.subscribers.len()
}

// Stops dispatch and releases the socket, true only on the first call.
// Must not be called from a subscriber.
func (listener *Listener) Close() (closed bool) {
	listener.mutex.Lock()
	defer listener.mutex.Unlock()

	if listener.closed.Load() {
		return
	}
	listener.closed.Store(true)

	listener.cancel()
	err := listener.conn.Close() // Unblocks a pending read
	if err != nil {
		logctx.LogEvent(listener.ctx, global.VerbosityStandard, global.WarnLog,
			"Error closing listener socket: %v\n", err)
	}
	listener.wg.Wait()

	closed = true
	return
}

func (listener *Listener) accepts(topic string) bool {
	if listener.filter == nil {
		return true
	}
	_, ok := listener.filter[topic]
	return ok
}

// Dispatch loop: polls the socket with a short deadline so cancellation is observed
func (listener *Listener) run(ctx context.Context) {
	buffer := make([]byte, network.MaxUDPPayloadIPv6+1)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		func() {
			defer func() {
				// Record panics and continue listening
				if fatalError := recover(); fatalError != nil {
					stack := debug.Stack()
					logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog,
						"panic in listener dispatch thread: %v\n%s", fatalError, stack)
				}
			}()

			err := listener.conn.SetReadDeadline(time.Now().Add(global.PollInterval))
			if err != nil && ctx.Err() == nil && !errors.Is(err, net.ErrClosed) {
				logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog,
					"Failed setting read deadline: %v\n", err)
			}

			endIndex, remoteAddr, err := listener.conn.ReadFromUDP(buffer)
			received := time.Now()
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
					// Shutdown in progress
					return
				}
				if errors.Is(err, os.ErrDeadlineExceeded) {
					return
				}

				listener.Metrics.ReadErrors.Add(1)
				logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog,
					"Failed reading data from socket: %v\n", err)
				return
			}

			listener.Metrics.Received.Add(1)
			listener.Metrics.Bytes.Add(uint64(endIndex))

			topic, payload, err := decodeEnvelope(buffer[:endIndex])
			if err != nil {
				listener.Metrics.Malformed.Add(1)
				logctx.LogEvent(ctx, global.VerbosityProgress, global.WarnLog,
					"Dropped datagram from %s: %v\n", remoteAddr.String(), err)
				return
			}

			if !listener.accepts(topic) {
				listener.Metrics.Filtered.Add(1)
				return
			}

			delivery := Delivery{
				Topic:    topic,
				Payload:  payload,
				Received: received,
			}
			delivered := dispatch(ctx, listener.subscribers.snapshot(), delivery, &listener.Metrics.SubscriberPanics)
			if delivered > 0 {
				listener.counter.Add(1)
				listener.Metrics.Delivered.Add(1)
			}
			listener.Metrics.BusyNs.Add(uint64(time.Since(received)))
		}()
	}
}

// Calls every subscriber in order on the current goroutine.
// A panicking subscriber is logged and skipped.
func dispatch[D any](ctx context.Context, subscribers []Handler[D], delivery D, panics *atomic.Uint64) (delivered int) {
	for _, subscriber := range subscribers {
		func() {
			defer func() {
				if fatalError := recover(); fatalError != nil {
					panics.Add(1)
					logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog,
						"panic in subscriber %T: %v\n%s", subscriber, fatalError, debug.Stack())
				}
			}()
			subscriber.Deliver(delivery)
		}()
		delivered++
	}
	return
}
