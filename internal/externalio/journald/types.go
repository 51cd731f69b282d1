package journald

import "net/http"

type OutModule struct {
	sink     *http.Client
	url      string // upload endpoint
	hostname string
	bootID   string
}

// One KEY=value line of the export format
type field struct {
	key string
	val string
}
