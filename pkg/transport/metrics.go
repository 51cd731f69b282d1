package transport

import (
	"mclbus/internal/metrics"
	"sync/atomic"
	"time"
)

type BroadcastMetrics struct {
	Published  atomic.Uint64 // datagrams sent
	Bytes      atomic.Uint64 // datagram bytes sent
	Fragmented atomic.Uint64 // datagrams larger than the path MTU
	Rejected   atomic.Uint64 // payloads refused before sending
	SendErrors atomic.Uint64 // socket write failures
}

type ListenMetrics struct {
	BusyNs           atomic.Uint64 // sum of ns spent handling datagrams
	Received         atomic.Uint64 // datagrams read from the socket
	Bytes            atomic.Uint64 // datagram bytes read
	Delivered        atomic.Uint64 // datagrams handed to at least one subscriber
	Filtered         atomic.Uint64 // datagrams whose topic did not match
	Malformed        atomic.Uint64 // datagrams without a valid envelope
	DecodeErrors     atomic.Uint64 // payloads that failed message decoding
	ReadErrors       atomic.Uint64 // socket read failures
	SubscriberPanics atomic.Uint64 // recovered subscriber panics
}

// Reads and clears interval counters
func (broadcaster *Broadcaster) CollectMetrics(interval time.Duration) (collection []metrics.Metric) {
	batch := metrics.NewBatch(broadcaster.Namespace, interval)

	batch.Add("published_total", broadcaster.Metrics.Published.Swap(0), "count", metrics.Counter, "Total datagrams published in the interval")
	batch.Add("published_bytes", broadcaster.Metrics.Bytes.Swap(0), "bytes", metrics.Counter, "Total datagram bytes published in the interval")
	batch.Add("fragmented_total", broadcaster.Metrics.Fragmented.Swap(0), "count", metrics.Counter, "Datagrams larger than the path MTU in the interval")
	batch.Add("rejected_total", broadcaster.Metrics.Rejected.Swap(0), "count", metrics.Counter, "Payloads refused before sending in the interval")
	batch.Add("send_errors_total", broadcaster.Metrics.SendErrors.Swap(0), "count", metrics.Counter, "Socket write failures in the interval")

	collection = batch.Metrics
	return
}

// Reads and clears interval counters
func (listener *Listener) CollectMetrics(interval time.Duration) (collection []metrics.Metric) {
	batch := metrics.NewBatch(listener.Namespace, interval)

	busyNs := listener.Metrics.BusyNs.Swap(0)
	busyPct := (float64(busyNs) / float64(interval.Nanoseconds())) * 100

	batch.Add("busy_time_percent", busyPct, "%", metrics.Summary, "Total time spent handling datagrams in the interval")
	batch.Add("received_total", listener.Metrics.Received.Swap(0), "count", metrics.Counter, "Total datagrams received in the interval")
	batch.Add("received_bytes", listener.Metrics.Bytes.Swap(0), "bytes", metrics.Counter, "Total datagram bytes received in the interval")
	batch.Add("delivered_total", listener.Metrics.Delivered.Swap(0), "count", metrics.Counter, "Datagrams handed to at least one subscriber in the interval")
	batch.Add("filtered_total", listener.Metrics.Filtered.Swap(0), "count", metrics.Counter, "Datagrams dropped by the topic filter in the interval")
	batch.Add("malformed_total", listener.Metrics.Malformed.Swap(0), "count", metrics.Counter, "Datagrams without a valid envelope in the interval")
	batch.Add("decode_errors_total", listener.Metrics.DecodeErrors.Swap(0), "count", metrics.Counter, "Payloads that failed message decoding in the interval")
	batch.Add("read_errors_total", listener.Metrics.ReadErrors.Swap(0), "count", metrics.Counter, "Socket read failures in the interval")
	batch.Add("subscriber_panics_total", listener.Metrics.SubscriberPanics.Swap(0), "count", metrics.Counter, "Recovered subscriber panics in the interval")
	batch.Add("subscriptions", uint64(listener.NumSubscriptions()), "count", metrics.Gauge, "Current number of subscribers")

	collection = batch.Metrics
	return
}
