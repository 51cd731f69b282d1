package recorder

import (
	"encoding/json"
	"fmt"
	"mclbus/internal/global"
	"mclbus/pkg/message"
	"os"
	"slices"
	"time"
)

// Loads JSON config from file
func LoadConfig(path string) (cfg JSONConfig, err error) {
	configFile, err := os.ReadFile(path)
	if err != nil {
		err = fmt.Errorf("failed to read config file: %v", err)
		return
	}

	err = json.Unmarshal(configFile, &cfg)
	if err != nil {
		err = fmt.Errorf("invalid config syntax in '%s': %v", path, err)
		return
	}

	return
}

// Parses JSON config into daemon config
func (cfg JSONConfig) NewDaemonConf() (config Config, err error) {
	if len(cfg.Messages) == 0 {
		err = fmt.Errorf("no message types defined")
		return
	}
	config.Messages = slices.Clone(cfg.Messages)

	// Every selected type must be defined
	for _, name := range cfg.Record.Types {
		if !slices.ContainsFunc(cfg.Messages, func(def message.Definition) bool { return def.Name == name }) {
			err = fmt.Errorf("record type '%s' is not in the message definitions", name)
			return
		}
	}
	config.Types = slices.Clone(cfg.Record.Types)
	config.Topics = slices.Clone(cfg.Record.Topics)

	// Output settings
	config.OutputFilePath = cfg.Outputs.FilePath
	config.BeatsEndpoint = cfg.Outputs.BeatsAddress
	config.JournaldURL = cfg.Outputs.JournaldURL
	config.QueueSize = cfg.Outputs.QueueSize
	if config.QueueSize < 0 {
		err = fmt.Errorf("output queue size must not be negative, got %d", config.QueueSize)
		return
	}
	if config.OutputFilePath == "" && config.BeatsEndpoint == "" && config.JournaldURL == "" {
		err = fmt.Errorf("no outputs configured (need filePath, beatsAddress or journaldURL)")
		return
	}

	// Metric settings
	config.MetricQueryServerEnabled = cfg.Metrics.EnableQueryServer
	config.MetricQueryServerPort = cfg.Metrics.QueryServerPort
	if cfg.Metrics.MaxAge != "" {
		config.MetricMaxAge, err = time.ParseDuration(cfg.Metrics.MaxAge)
		if err != nil {
			err = fmt.Errorf("failed to parse metric max age time: %v", err)
			return
		}
	}
	if cfg.Metrics.Interval != "" {
		config.MetricCollectionInterval, err = time.ParseDuration(cfg.Metrics.Interval)
		if err != nil {
			err = fmt.Errorf("failed to parse metric collection interval time: %v", err)
			return
		}
	}
	return
}

// Sets defaults for any missing/invalid values
func (cfg *Config) setDefaults() {
	// Queue
	if cfg.QueueSize == 0 {
		cfg.QueueSize = global.DefaultMaxQueueSize
	}
	if cfg.QueueSize < global.DefaultMinQueueSize {
		cfg.QueueSize = global.DefaultMinQueueSize
	}

	// Recording everything when no selection
	if len(cfg.Types) == 0 {
		for _, definition := range cfg.Messages {
			cfg.Types = append(cfg.Types, definition.Name)
		}
	}

	// Metrics
	if cfg.MetricMaxAge <= 0 {
		cfg.MetricMaxAge = 1 * time.Hour
	}
	if cfg.MetricQueryServerPort == 0 {
		cfg.MetricQueryServerPort = global.HTTPListenPortRecorder
	}
	if cfg.MetricCollectionInterval <= 0 {
		cfg.MetricCollectionInterval = time.Duration(15 * time.Second)
	}
}
