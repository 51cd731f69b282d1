// Central registry for storing time-sliced metrics collected from bus components
package metrics

import (
	"strings"
	"sync"
	"time"
)

type MetricType string

const (
	Counter MetricType = "counter" // always increasing within an interval
	Gauge   MetricType = "gauge"   // can go up/down
	Summary MetricType = "summary" // avg/min/max
)

// Container for a metric and associated data
type Metric struct {
	Name        string // e.g. datagrams_received, depth
	Description string
	Namespace   []string // e.g. "Recorder/Listener/Pose"
	Value       MetricValue
	Type        MetricType
	Timestamp   time.Time // time when the metric was recorded
}

// Specific value of a metric
type MetricValue struct {
	Raw      any           // uint64, float64
	Unit     string        // e.g., "ns", "bytes", "count"
	Interval time.Duration // measurement window
}

type Registry struct {
	mu     sync.RWMutex
	slices map[time.Time]map[string]map[string]Metric // slice start -> namespace -> name
}

// Creates new metric registry storage
func New() (registry *Registry) {
	registry = &Registry{
		slices: make(map[time.Time]map[string]map[string]Metric),
	}
	return
}

// Prepares storage for the slice containing now, truncated to interval
func (registry *Registry) NewTimeSlice(now time.Time, interval time.Duration) (timeSlice time.Time) {
	timeSlice = now
	if interval > 0 {
		timeSlice = now.Truncate(interval)
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()
	if registry.slices[timeSlice] == nil {
		registry.slices[timeSlice] = make(map[string]map[string]Metric)
	}
	return
}

// Adds batch of metrics to an existing time slice (unknown slices are ignored)
func (registry *Registry) Add(timeSlice time.Time, batch []Metric) {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	slice := registry.slices[timeSlice]
	if slice == nil {
		return
	}

	for _, metric := range batch {
		namespace := strings.Join(metric.Namespace, "/")
		if slice[namespace] == nil {
			slice[namespace] = make(map[string]Metric)
		}
		slice[namespace][metric.Name] = metric
	}
}

// Deletes time slices older than maxAge relative to currentTime
func (registry *Registry) Prune(currentTime time.Time, maxAge time.Duration) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	for timeSlice := range registry.slices {
		if currentTime.Sub(timeSlice) > maxAge {
			delete(registry.slices, timeSlice)
		}
	}
}
