package server

import (
	"context"
	"fmt"
	"mclbus/internal/global"
	"mclbus/internal/metrics"
	"net/http"
	"strings"
)

// Lists one sample per known metric matching the filters (no recorded values)
func handleDiscovery(baseCtx context.Context, discover CatalogQuery, serverResponder http.ResponseWriter, clientRequest *http.Request) {
	query := clientRequest.URL.Query()

	reqType, err := parseMetricType(query.Get("type"))
	if err != nil {
		http.Error(serverResponder, err.Error(), http.StatusBadRequest)
		return
	}

	found := discover(query.Get("name"), query.Get("description"),
		namespaceFromPath(clientRequest.URL.Path, global.DiscoveryPath),
		query.Get("unit"), reqType)
	respondResults(baseCtx, serverResponder, clientRequest.URL.Path, found)
}

// Empty means any type
func parseMetricType(raw string) (metricType metrics.MetricType, err error) {
	if raw == "" {
		return
	}

	candidate := metrics.MetricType(strings.ToLower(raw))
	switch candidate {
	case metrics.Counter, metrics.Gauge, metrics.Summary:
		metricType = candidate
	default:
		err = fmt.Errorf("unknown metric type %q", raw)
	}
	return
}
