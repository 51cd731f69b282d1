package server

import (
	"context"
	"fmt"
	"mclbus/internal/global"
	"net/http"
	"time"
)

// Serves recorded values for metrics under the path namespace within a time window
func handleData(baseCtx context.Context, search SampleQuery, serverResponder http.ResponseWriter, clientRequest *http.Request) {
	query := clientRequest.URL.Query()

	reqStartTime, reqEndTime, err := parseTimeRange(time.Now(), query.Get("starttime"), query.Get("endtime"))
	if err != nil {
		http.Error(serverResponder, err.Error(), http.StatusBadRequest)
		return
	}

	found := search(query.Get("name"), namespaceFromPath(clientRequest.URL.Path, global.DataPath), reqStartTime, reqEndTime)
	respondResults(baseCtx, serverResponder, clientRequest.URL.Path, found)
}

// Parses query start/end times.
// Start may be empty (last minute), relative to now ("-5m") or RFC3339; end may be empty/"now" or RFC3339.
func parseTimeRange(now time.Time, rawStart, rawEnd string) (start, end time.Time, err error) {
	switch {
	case rawStart == "":
		start = now.Add(-1 * time.Minute)
	case rawStart[0] == '-' || rawStart[0] == '+':
		dur, parseErr := time.ParseDuration(rawStart)
		if parseErr != nil {
			// Unknown units fall back to the default window
			start = now.Add(-1 * time.Minute)
		} else if dur > 0 {
			err = fmt.Errorf("start time %q is in the future", rawStart)
			return
		} else {
			start = now.Add(dur)
		}
	default:
		start, err = time.Parse(time.RFC3339Nano, rawStart)
		if err != nil {
			return
		}
	}

	if rawEnd == "" || rawEnd == "now" {
		end = now
	} else {
		end, err = time.Parse(time.RFC3339Nano, rawEnd)
		if err != nil {
			return
		}
	}

	if end.Before(start) {
		err = fmt.Errorf("end time %s is before start time %s", end.Format(time.RFC3339Nano), start.Format(time.RFC3339Nano))
	}
	return
}
