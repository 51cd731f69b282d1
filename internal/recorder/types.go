package recorder

import (
	"context"
	"mclbus/internal/externalio/beats"
	"mclbus/internal/externalio/file"
	"mclbus/internal/externalio/journald"
	"mclbus/internal/global"
	"mclbus/internal/metrics"
	"mclbus/internal/queue/fifo"
	"mclbus/pkg/message"
	"mclbus/pkg/transport"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

type JSONConfig struct {
	Messages []message.Definition `json:"messages"`
	Record   struct {
		Types  []string `json:"types,omitempty"`
		Topics []string `json:"topics,omitempty"`
	} `json:"record"`
	Outputs struct {
		FilePath     string `json:"filePath,omitempty"`
		BeatsAddress string `json:"beatsAddress,omitempty"`
		JournaldURL  string `json:"journaldURL,omitempty"`
		QueueSize    int    `json:"queueSize,omitempty"`
	} `json:"outputs"`
	Metrics global.MetricConf `json:"metrics"`
}

type Config struct {
	// Message types known to the bus
	Messages []message.Definition

	// Recording selection
	Types  []string // empty records every defined type
	Topics []string // empty accepts every topic

	// Outputs
	OutputFilePath string
	BeatsEndpoint  string
	JournaldURL    string
	QueueSize      int

	// Metrics
	MetricQueryServerEnabled bool
	MetricQueryServerPort    int
	MetricCollectionInterval time.Duration
	MetricMaxAge             time.Duration
}

type Daemon struct {
	cfg        Config
	ctx        context.Context
	cancel     context.CancelFunc
	stopOutput context.CancelFunc

	wg sync.WaitGroup

	Listeners          []*transport.MessageListener
	Queue              *fifo.Queue[transport.MessageDelivery]
	Output             *Output
	metricsCollector   *Gatherer
	MetricServer       *http.Server
	MetricDataSearcher func(name string, namespacePrefix []string, start, end time.Time) []metrics.Metric
	MetricDiscoverer   func(name, description string, namespacePrefix []string, unit string, metricType metrics.MetricType) []metrics.Metric

	Dropped atomic.Uint64 // deliveries lost to a full queue
}

// Writes queued deliveries to the configured outputs
type Output struct {
	Namespace []string
	Inbox     *fifo.Queue[transport.MessageDelivery]
	FileMod   *file.OutModule
	BeatsMod  *beats.OutModule
	JrnlMod   *journald.OutModule
	Metrics   *OutputMetrics
}

type OutputMetrics struct {
	ReceivedMessages      atomic.Uint64 // deliveries taken from the queue
	SuccessfulFileWrites  atomic.Uint64 // entries flushed to the dump file
	SuccessfulBeatsWrites atomic.Uint64 // events acknowledged by the beats server
	SuccessfulJrnlWrites  atomic.Uint64 // entries accepted by the journal remote server
	FailedWrites          atomic.Uint64 // output errors of any kind
}

// Gathers component metrics into the registry
type Gatherer struct {
	Interval  time.Duration     // Polling interval to gather metrics at
	Retention time.Duration     // Maximum time to maintain metrics for
	Registry  *metrics.Registry // Storage for metric data
	daemon    *Daemon
}
