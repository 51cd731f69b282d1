package metrics

import (
	"fmt"
	"strings"
	"time"
)

// JSON version
type JMetric struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Namespace   string       `json:"namespace"`
	Value       JMetricValue `json:"value"`
	Type        string       `json:"type"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

type JMetricValue struct {
	Raw      string `json:"raw,omitempty"`
	Unit     string `json:"unit"`
	Interval string `json:"interval,omitempty"`
}

// Accumulates metrics that share a namespace, interval and record time
type Batch struct {
	namespace []string
	interval  time.Duration
	recorded  time.Time
	Metrics   []Metric
}

func NewBatch(namespace []string, interval time.Duration) (batch *Batch) {
	batch = &Batch{
		namespace: append([]string(nil), namespace...),
		interval:  interval,
		recorded:  time.Now(),
	}
	return
}

func (batch *Batch) Add(name string, raw any, unit string, metricType MetricType, description string) {
	batch.Metrics = append(batch.Metrics, Metric{
		Name:        name,
		Description: description,
		Namespace:   batch.namespace,
		Type:        metricType,
		Timestamp:   batch.recorded,
		Value: MetricValue{
			Raw:      raw,
			Unit:     unit,
			Interval: batch.interval,
		},
	})
}

// Converts internal metric type to export (JSON) metric
func (inMetric Metric) Convert() (outMetric JMetric) {
	outMetric.Name = inMetric.Name
	outMetric.Description = inMetric.Description
	outMetric.Namespace = strings.Join(inMetric.Namespace, "/")
	outMetric.Type = string(inMetric.Type)
	outMetric.Value.Unit = inMetric.Value.Unit

	if inMetric.Value.Raw != nil {
		outMetric.Value.Raw = fmt.Sprintf("%v", inMetric.Value.Raw)
	}
	if inMetric.Value.Interval > 0 {
		outMetric.Value.Interval = inMetric.Value.Interval.String()
	}
	if !inMetric.Timestamp.IsZero() {
		outMetric.Timestamp = inMetric.Timestamp.Format(time.RFC3339Nano)
	}
	return
}
