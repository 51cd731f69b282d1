package global

import "time"

// Verbosity levels for printing increasingly detailed information as program progresses
//
//	0 - None: quiet (prints nothing but errors)
//	1 - Standard: normal progress messages
//	2 - Progress: more progress messages (no actual data outputted)
//	3 - Data: shows limited data being processed
//	4 - FullData: shows full data being processed
//	5 - Debug: shows extra data during processing (raw bytes)
const (
	// Descriptive Names for available verbosity levels
	VerbosityNone int = iota
	VerbosityStandard
	VerbosityProgress
	VerbosityData
	VerbosityFullData
	VerbosityDebug

	// Descriptive names for available severity levels
	ErrorLog string = "Error"
	WarnLog  string = "Warn"
	InfoLog  string = "Info"
)

const (
	ProgBaseName string = "mclbus"
	ProgVersion  string = "v0.3.0"

	// Context keys
	LoggerKey  CtxKey = "logger"  // Event queue (mostly for variable log verbosity handling)
	LogTagsKey CtxKey = "logtags" // List of tags in order of broad->specific appended/popped at various parts of the program

	DefaultConfigPath string = "/etc/mclbus.json"

	// Queue defaults
	DefaultMinQueueSize int = 64
	DefaultMaxQueueSize int = 4096

	// Worker polling, bounds stop/close latency
	PollInterval time.Duration = 100 * time.Millisecond

	// Replay defaults
	DefaultReplaySpeed float64 = 1.0

	// Timeout values
	RecordShutdownTimeout time.Duration = 10 * time.Second

	// Metric HTTP server
	HTTPListenPortRecorder int           = 36000       // Default listen port
	HTTPListenAddr         string        = "localhost" // Metric queries only exposed to local machine
	HTTPReadTimeout        time.Duration = 30 * time.Second
	HTTPWriteTimeout       time.Duration = 10 * time.Second
	HTTPIdleTimeout        time.Duration = 180 * time.Second
	DataPath               string        = "/data/"
	DiscoveryPath          string        = "/discover/"

	// Namespacing Name Components
	NSMetric    string = "Metrics"
	NSMetricSrv string = "Server"
	NSTest      string = "Test"
	NSCLI       string = "CLI"
	NSRecord    string = "Recorder"
	NSReplay    string = "Replay"
	NSBuffer    string = "Buffer"
	NSSchedule  string = "Scheduler"
	NSBroadcast string = "Broadcaster"
	NSListen    string = "Listener"
	NSOut       string = "Output"
	NSQueue     string = "Queue"
	NSoFile     string = "File"
)
