package server

import (
	"mclbus/internal/metrics"
	"time"
)

func mockCatalog(results []metrics.Metric) CatalogQuery {
	return func(name, desc string, ns []string, unit string, mt metrics.MetricType) []metrics.Metric {
		return results
	}
}

func mockSamples(results []metrics.Metric) SampleQuery {
	return func(name string, ns []string, start, end time.Time) []metrics.Metric {
		return results
	}
}
