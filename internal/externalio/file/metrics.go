package file

import (
	"mclbus/internal/metrics"
	"sync/atomic"
	"time"
)

type ReaderMetrics struct {
	EntriesRead atomic.Uint64 // entries decoded from disk
	OutOfRange  atomic.Uint64 // entries outside the time window
	Skipped     atomic.Uint64 // entries whose message could not be rebuilt
	Decoded     atomic.Uint64 // records handed to the caller
}

func (reader *Reader) CollectMetrics(interval time.Duration) (collection []metrics.Metric) {
	batch := metrics.NewBatch(reader.Namespace, interval)

	batch.Add("entries_read", reader.Metrics.EntriesRead.Swap(0), "count", metrics.Counter, "Total entries read from dump files in the interval")
	batch.Add("entries_out_of_range", reader.Metrics.OutOfRange.Swap(0), "count", metrics.Counter, "Entries outside the requested time window in the interval")
	batch.Add("entries_skipped", reader.Metrics.Skipped.Swap(0), "count", metrics.Counter, "Entries with unknown or undecodable messages in the interval")
	batch.Add("records_decoded", reader.Metrics.Decoded.Swap(0), "count", metrics.Counter, "Records returned for replay in the interval")

	collection = batch.Metrics
	return
}
