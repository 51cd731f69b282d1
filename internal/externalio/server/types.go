package server

import (
	"context"
	"mclbus/internal/global"
	"mclbus/internal/logctx"
	"mclbus/internal/metrics"
	"strings"
	"time"
)

// Recorded samples of one metric name under a namespace, within [start, end]
type SampleQuery func(name string, namespacePrefix []string, start, end time.Time) []metrics.Metric

// One sample per distinct metric matching every non-empty filter
type CatalogQuery func(name, description string, namespacePrefix []string, unit string, metricType metrics.MetricType) []metrics.Metric

// Body sent instead of a result list
type queryError struct {
	Error string `json:"error"`
	Path  string `json:"path,omitempty"`
}

// Routes net/http server errors into the context logger
type serverErrorLog struct {
	ctx context.Context
}

func (sink serverErrorLog) Write(p []byte) (n int, err error) {
	n = len(p)
	line := strings.TrimSpace(string(p))
	if line == "" {
		return
	}
	logctx.LogEvent(sink.ctx, global.VerbosityStandard, global.ErrorLog, "metric server: %s\n", line)
	return
}
