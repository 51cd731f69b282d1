package metrics

import (
	"maps"
	"slices"
	"strings"
	"time"
)

// Exact or prefix namespace match. Empty query matches all.
func matchesNamespace(metricNS, queryNS []string) bool {
	return len(metricNS) >= len(queryNS) && slices.Equal(metricNS[:len(queryNS)], queryNS)
}

// Definition filters, empty fields match anything
type discoverFilter struct {
	name        string // substring
	description string // substring
	unit        string
	metricType  MetricType
}

func (filter discoverFilter) accepts(metric Metric) bool {
	switch {
	case filter.name != "" && !strings.Contains(metric.Name, filter.name):
		return false
	case filter.description != "" && !strings.Contains(metric.Description, filter.description):
		return false
	case filter.unit != "" && metric.Value.Unit != filter.unit:
		return false
	case filter.metricType != "" && metric.Type != filter.metricType:
		return false
	}
	return true
}

// Returns metrics matching name (empty = all) under namespacePrefix, oldest slice first.
// Zero start/end leave that side of the window open.
func (registry *Registry) Search(name string, namespacePrefix []string, start, end time.Time) (results []Metric) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	inWindow := func(ts time.Time) bool {
		return (start.IsZero() || !ts.Before(start)) && (end.IsZero() || !ts.After(end))
	}

	timestamps := slices.SortedFunc(maps.Keys(registry.slices), func(a, b time.Time) int { return a.Compare(b) })
	for _, ts := range timestamps {
		if !inWindow(ts) {
			continue
		}

		slice := registry.slices[ts]
		for _, ns := range slices.Sorted(maps.Keys(slice)) {
			if !matchesNamespace(strings.Split(ns, "/"), namespacePrefix) {
				continue
			}

			byName := slice[ns]
			if name == "" {
				for _, metricName := range slices.Sorted(maps.Keys(byName)) {
					results = append(results, byName[metricName])
				}
			} else if metric, ok := byName[name]; ok {
				results = append(results, metric)
			}
		}
	}
	return
}

// Lists distinct metric definitions matching the filters (values and times stripped).
// Name and description filters are substring matches.
func (registry *Registry) Discover(name, description string, namespacePrefix []string, unit string, metricType MetricType) (results []Metric) {
	filter := discoverFilter{name: name, description: description, unit: unit, metricType: metricType}

	registry.mu.RLock()
	defer registry.mu.RUnlock()

	// One definition per namespace, name, type and unit
	type definitionKey struct {
		namespace, name, unit string
		metricType            MetricType
	}
	definitions := make(map[definitionKey]Metric)

	for _, slice := range registry.slices {
		for ns, byName := range slice {
			if !matchesNamespace(strings.Split(ns, "/"), namespacePrefix) {
				continue
			}
			for _, metric := range byName {
				if !filter.accepts(metric) {
					continue
				}
				key := definitionKey{namespace: ns, name: metric.Name, unit: metric.Value.Unit, metricType: metric.Type}
				definitions[key] = Metric{
					Name:        metric.Name,
					Description: metric.Description,
					Namespace:   metric.Namespace,
					Type:        metric.Type,
					Value:       MetricValue{Unit: metric.Value.Unit},
				}
			}
		}
	}

	results = slices.SortedFunc(maps.Values(definitions), func(a, b Metric) int {
		if byName := strings.Compare(a.Name, b.Name); byName != 0 {
			return byName
		}
		return strings.Compare(strings.Join(a.Namespace, "/"), strings.Join(b.Namespace, "/"))
	})
	return
}
