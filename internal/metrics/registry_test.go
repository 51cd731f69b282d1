package metrics

import (
	"testing"
	"time"
)

// Three slices, one minute apart
func setupRegistryWithData(t *testing.T) (registry *Registry, ts map[string]time.Time) {
	t.Helper()

	registry = New()
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	ts = map[string]time.Time{
		"ts1": base,
		"ts2": base.Add(1 * time.Minute),
		"ts3": base.Add(2 * time.Minute),
	}

	listenerNS := []string{"Recorder", "Listener", "A"}
	queueNS := []string{"Recorder", "Output", "Queue"}
	replayNS := []string{"Replay", "Scheduler"}

	for _, key := range []string{"ts1", "ts2", "ts3"} {
		slice := registry.NewTimeSlice(ts[key], time.Minute)
		if !slice.Equal(ts[key]) {
			t.Fatalf("expected slice %v, but got %v", ts[key], slice)
		}

		batch := NewBatch(listenerNS, time.Minute)
		batch.Add("datagrams_received", uint64(10), "count", Counter, "Datagrams read from socket")
		batch.Add("datagrams_malformed", uint64(1), "count", Counter, "Datagrams that failed envelope parsing")
		registry.Add(slice, batch.Metrics)

		batch = NewBatch(queueNS, time.Minute)
		batch.Add("depth", uint64(3), "count", Gauge, "Current number of items in the queue")
		registry.Add(slice, batch.Metrics)
	}

	slice := registry.NewTimeSlice(ts["ts3"], time.Minute)
	batch := NewBatch(replayNS, time.Minute)
	batch.Add("records_published", uint64(20), "count", Counter, "Records published")
	registry.Add(slice, batch.Metrics)
	return
}

func TestRegistry_Search(t *testing.T) {
	registry, ts := setupRegistryWithData(t)

	tests := []struct {
		name            string
		metricName      string
		namespacePrefix []string
		start           time.Time
		end             time.Time
		want            int
	}{
		{"all metrics", "", nil, time.Time{}, time.Time{}, 10},
		{"partial name does not match", "depth_", nil, time.Time{}, time.Time{}, 0},
		{"depth all namespaces", "depth", nil, time.Time{}, time.Time{}, 3},
		{"namespace prefix Recorder", "", []string{"Recorder"}, time.Time{}, time.Time{}, 9},
		{"namespace prefix Listener", "", []string{"Recorder", "Listener"}, time.Time{}, time.Time{}, 6},
		{"unknown namespace", "", []string{"Nope"}, time.Time{}, time.Time{}, 0},
		{"single slice", "", nil, ts["ts3"], ts["ts3"], 4},
		{"window", "", nil, ts["ts2"], ts["ts3"], 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := registry.Search(tt.metricName, tt.namespacePrefix, tt.start, tt.end)
			if len(results) != tt.want {
				t.Fatalf("expected %d results, but got %d", tt.want, len(results))
			}
		})
	}
}

func TestRegistry_Discover(t *testing.T) {
	registry, _ := setupRegistryWithData(t)

	tests := []struct {
		name        string
		metricName  string
		description string
		namespace   []string
		unit        string
		metricType  MetricType
		want        int
	}{
		{"everything", "", "", nil, "", "", 4},
		{"substring name", "datagrams", "", nil, "", "", 2},
		{"by type", "", "", nil, "", Gauge, 1},
		{"by description", "", "envelope", nil, "", "", 1},
		{"by namespace", "", "", []string{"Replay"}, "", "", 1},
		{"by unit miss", "", "", nil, "bytes", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := registry.Discover(tt.metricName, tt.description, tt.namespace, tt.unit, tt.metricType)
			if len(results) != tt.want {
				t.Fatalf("expected %d results, but got %d", tt.want, len(results))
			}
			for _, metric := range results {
				if metric.Value.Raw != nil || !metric.Timestamp.IsZero() {
					t.Fatalf("expected discovery results without values, but got %+v", metric)
				}
			}
		})
	}
}

func TestRegistry_Prune(t *testing.T) {
	registry, ts := setupRegistryWithData(t)

	registry.Prune(ts["ts3"].Add(30*time.Second), 1*time.Minute)

	results := registry.Search("", nil, time.Time{}, time.Time{})
	if len(results) != 4 {
		t.Fatalf("expected only newest slice to survive (4 metrics), but got %d", len(results))
	}
	for _, metric := range results {
		if metric.Timestamp.IsZero() {
			t.Fatalf("expected recorded timestamp, but got zero")
		}
	}
}

func TestRegistry_AddUnknownSlice(t *testing.T) {
	registry := New()

	batch := NewBatch([]string{"Test"}, time.Second)
	batch.Add("x", uint64(1), "count", Counter, "")
	registry.Add(time.Now(), batch.Metrics)

	if len(registry.Search("", nil, time.Time{}, time.Time{})) != 0 {
		t.Fatalf("expected metrics for unknown slice to be ignored")
	}
}

func TestConvert(t *testing.T) {
	recorded := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	metric := Metric{
		Name:        "depth",
		Description: "Current number of items in the queue",
		Namespace:   []string{"Recorder", "Output", "Queue"},
		Type:        Gauge,
		Timestamp:   recorded,
		Value:       MetricValue{Raw: uint64(7), Unit: "count", Interval: 15 * time.Second},
	}

	out := metric.Convert()
	if out.Namespace != "Recorder/Output/Queue" {
		t.Fatalf("expected joined namespace, but got '%s'", out.Namespace)
	}
	if out.Value.Raw != "7" {
		t.Fatalf("expected raw '7', but got '%s'", out.Value.Raw)
	}
	if out.Value.Interval != "15s" {
		t.Fatalf("expected interval '15s', but got '%s'", out.Value.Interval)
	}
	if out.Timestamp != recorded.Format(time.RFC3339Nano) {
		t.Fatalf("expected timestamp '%s', but got '%s'", recorded.Format(time.RFC3339Nano), out.Timestamp)
	}

	empty := Metric{Name: "x"}.Convert()
	if empty.Timestamp != "" || empty.Value.Raw != "" {
		t.Fatalf("expected empty optional fields, but got %+v", empty)
	}
}
