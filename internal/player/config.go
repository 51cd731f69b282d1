package player

import (
	"encoding/json"
	"fmt"
	"math"
	"mclbus/internal/global"
	"os"
	"slices"
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

// Parses JSON config into player config
func (cfg JSONConfig) NewPlayerConf() (config Config, err error) {
	if len(cfg.Messages) == 0 {
		err = fmt.Errorf("no message types defined")
		return
	}
	config.Messages = slices.Clone(cfg.Messages)

	config.Source = cfg.Replay.Source
	config.Speed = cfg.Replay.Speed
	config.BufferLength = cfg.Replay.BufferLength
	config.MinTime = cfg.Replay.MinTime
	config.MaxTime = cfg.Replay.MaxTime
	return
}

// Sets defaults for any missing values and validates the rest
func (cfg *Config) setDefaults() (err error) {
	if cfg.Speed == 0 {
		cfg.Speed = global.DefaultReplaySpeed
	}
	if math.IsNaN(cfg.Speed) || math.IsInf(cfg.Speed, 0) || cfg.Speed < 0 {
		err = fmt.Errorf("replay speed must be a finite number above 0, got %v", cfg.Speed)
		return
	}
	if cfg.BufferLength < 0 {
		err = fmt.Errorf("buffer length must not be negative, got %d", cfg.BufferLength)
		return
	}
	if cfg.Source == "" {
		err = fmt.Errorf("no replay source given")
		return
	}
	return
}
