// HTTP server to expose discovery and querying of metric data to other programs only on the local system
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"mclbus/internal/global"
	"mclbus/internal/logctx"
	"mclbus/internal/metrics"
	"net/http"
	"strconv"
	"strings"
)

const helpTemplate string = `%s metric query server

GET http://%s:%d%s[namespace/...]?name=&description=&unit=&type=counter|gauge|summary
    Lists one sample per known metric matching the filters.

GET http://%s:%d%s[namespace/...]?name=&starttime=&endtime=
    Returns recorded values. starttime is RFC3339 or relative ("-5m", default last minute).
    endtime is RFC3339 or "now" (default).
`

// Sets up HTTP listener configuration for metric querying
func SetupListener(ctx context.Context, port int, search SampleQuery, discover CatalogQuery) (server *http.Server, err error) {
	if search == nil || discover == nil {
		err = fmt.Errorf("metric query server requires both a data searcher and a discoverer")
		return
	}
	if port <= 0 || port > 65535 {
		err = fmt.Errorf("invalid metric query server port %d", port)
		return
	}

	helpPage := fmt.Sprintf(helpTemplate, global.ProgBaseName,
		global.HTTPListenAddr, port, global.DiscoveryPath,
		global.HTTPListenAddr, port, global.DataPath)

	requestMultiplexer := http.NewServeMux()
	requestMultiplexer.HandleFunc("/", getOnly(func(serverResponder http.ResponseWriter, clientRequest *http.Request) {
		// Root help page, everything else unknown
		if clientRequest.URL.Path != "/" {
			http.NotFound(serverResponder, clientRequest)
			return
		}
		serverResponder.Header().Set("Content-Type", "text/plain; charset=utf-8")
		serverResponder.Write([]byte(helpPage))
	}))
	requestMultiplexer.HandleFunc(global.DiscoveryPath, getOnly(func(serverResponder http.ResponseWriter, clientRequest *http.Request) {
		handleDiscovery(ctx, discover, serverResponder, clientRequest)
	}))
	requestMultiplexer.HandleFunc(global.DataPath, getOnly(func(serverResponder http.ResponseWriter, clientRequest *http.Request) {
		handleData(ctx, search, serverResponder, clientRequest)
	}))

	// Server configuration
	server = &http.Server{
		Addr:         global.HTTPListenAddr + ":" + strconv.Itoa(port),
		Handler:      requestMultiplexer,
		ReadTimeout:  global.HTTPReadTimeout,
		WriteTimeout: global.HTTPWriteTimeout,
		IdleTimeout:  global.HTTPIdleTimeout,
		ErrorLog:     log.New(serverErrorLog{ctx: ctx}, "", 0),
	}

	return
}

// Starts the metric HTTP server and waits for requests
func Start(ctx context.Context, server *http.Server) {
	logctx.LogEvent(ctx, global.VerbosityStandard, global.InfoLog, "Metric query server starting on %s (http://%s/)\n",
		server.Addr,
		server.Addr,
	)
	err := server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog, "Metric query server failed to start: %v\n", err)
	}
}

// Rejects anything but GET
func getOnly(handler http.HandlerFunc) http.HandlerFunc {
	return func(serverResponder http.ResponseWriter, clientRequest *http.Request) {
		if clientRequest.Method != http.MethodGet {
			serverResponder.Header().Set("Allow", http.MethodGet)
			serverResponder.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		handler(serverResponder, clientRequest)
	}
}

// Path segments after prefix, nil for the prefix itself
func namespaceFromPath(path, prefix string) (namespace []string) {
	trimmed := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if trimmed == "" {
		return
	}
	namespace = strings.Split(trimmed, "/")
	return
}

// Sends converted metrics, or an error object when nothing matched
func respondResults(ctx context.Context, serverResponder http.ResponseWriter, path string, found []metrics.Metric) {
	if len(found) == 0 {
		jResp(ctx, serverResponder, queryError{Error: "Search returned no results", Path: path})
		return
	}

	results := make([]metrics.JMetric, 0, len(found))
	for _, metric := range found {
		results = append(results, metric.Convert())
	}
	jResp(ctx, serverResponder, results)
}

// Encodes JSON and sends as response body
func jResp(ctx context.Context, serverResponder http.ResponseWriter, content any) {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(content); err != nil {
		serverResponder.WriteHeader(http.StatusInternalServerError)
		logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog, "Failed marshaling metric results: %v\n", err)
		return
	}
	serverResponder.Header().Set("Content-Type", "application/json")
	serverResponder.WriteHeader(http.StatusOK)
	serverResponder.Write(buf.Bytes())
}
