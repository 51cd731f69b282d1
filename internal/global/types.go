package global

type CommandSet struct {
	CommandName     string                 // Exact name of cli command
	UsageOption     string                 // Expected command value in usage top line
	Description     string                 // Short text displayed on parent command
	FullDescription string                 // Long text displayed on current command
	ChildCommands   map[string]*CommandSet // Available subcommands
}

type CtxKey string

type MetricConf struct {
	Interval          string `json:"collectionInterval"`
	MaxAge            string `json:"maximumRetention,omitempty"`
	EnableQueryServer bool   `json:"enableHTTPQueryServer"`
	QueryServerPort   int    `json:"queryServerPort,omitempty"`
}
