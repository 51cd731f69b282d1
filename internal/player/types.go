package player

import (
	"mclbus/pkg/message"
)

type JSONConfig struct {
	Messages []message.Definition `json:"messages"`
	Replay   struct {
		Source       string  `json:"source"`
		Speed        float64 `json:"speed,omitempty"`
		BufferLength int     `json:"bufferLength,omitempty"`
		MinTime      float64 `json:"minTime,omitempty"`
		MaxTime      float64 `json:"maxTime,omitempty"`
	} `json:"replay"`
}

type Config struct {
	Messages     []message.Definition
	Source       string  // dump file or directory
	Speed        float64 // 1 is real time
	BufferLength int     // 0 buffers the whole dump
	MinTime      float64 // seconds from the first record
	MaxTime      float64 // 0 is unlimited
}

// Summary of a finished replay
type Result struct {
	Published     uint64
	PublishErrors uint64
	Skipped       uint64 // entries the reader could not rebuild
	Late          uint64
	Duration      float64 // wall clock seconds
	Completed     bool    // false when interrupted
}
