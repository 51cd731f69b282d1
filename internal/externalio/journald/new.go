// Forwards bus messages to a systemd-journal-remote server in journal export format
package journald

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

const bootIDPath string = "/proc/sys/kernel/random/boot_id"

// Creates new journald output module. Tests connection. Returns nil nil if no url.
func NewOutput(endpoint string) (module *OutModule, err error) {
	if endpoint == "" {
		return
	}

	new := &OutModule{}

	transport := &http.Transport{
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		DisableKeepAlives:     false,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: -1, // Not supported by journal remote server
	}

	baseURL, err := url.Parse(endpoint)
	if err != nil {
		err = fmt.Errorf("invalid journald URL: %v", err)
		return
	}
	if baseURL.Scheme != "http" && baseURL.Scheme != "https" {
		err = fmt.Errorf("invalid journald URL '%s': scheme must be http or https", endpoint)
		return
	}
	messagePublishPath := &url.URL{Path: "upload"} // Only path accepted by the remote server
	new.url = baseURL.ResolveReference(messagePublishPath).String()

	new.sink = &http.Client{
		Transport: transport,
		Timeout:   10 * time.Second,
	}

	new.hostname, _ = os.Hostname()
	bootID, bootErr := os.ReadFile(bootIDPath)
	if bootErr == nil {
		// Journal wants the id without dashes
		new.bootID = strings.ReplaceAll(strings.TrimSpace(string(bootID)), "-", "")
	}

	testCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(testCtx, http.MethodPost, new.url, bytes.NewReader(nil))
	if err != nil {
		err = fmt.Errorf("failed to create test HTTP connection to journald: %v", err)
		return
	}
	req.Header.Set("Content-Type", exportContentType)

	resp, err := new.sink.Do(req)
	if err != nil {
		err = fmt.Errorf("failed to test HTTP connection to journald: %v", err)
		return
	}
	resp.Body.Close()

	module = new
	return
}
