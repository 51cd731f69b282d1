package cli

import (
	"encoding/json"
	"flag"
	"fmt"
	"mclbus/internal/global"
	"mclbus/pkg/message"
	"os"
	"strings"
)

// Message definitions shared by every config kind
type busConfig struct {
	Messages []message.Definition `json:"messages"`
}

// Sets verbosity flags, returning the parsed level
func SetGlobalArguments(fs *flag.FlagSet) (level *int) {
	level = new(int)
	fs.IntVar(level, "v", global.VerbosityStandard, "Increase detailed progress messages (Higher is more verbose) <0...5>")
	fs.IntVar(level, "verbosity", global.VerbosityStandard, "Increase detailed progress messages (Higher is more verbose) <0...5>")
	return
}

func SetCommon(fs *flag.FlagSet, configPath *string) {
	fs.StringVar(configPath, "c", global.DefaultConfigPath, "Path to the configuration file")
	fs.StringVar(configPath, "config", global.DefaultConfigPath, "Path to the configuration file")
}

// Reads only the message definitions from a config file
func loadDefinitions(path string) (definitions []message.Definition, err error) {
	configFile, err := os.ReadFile(path)
	if err != nil {
		err = fmt.Errorf("failed to read config file: %v", err)
		return
	}

	var cfg busConfig
	err = json.Unmarshal(configFile, &cfg)
	if err != nil {
		err = fmt.Errorf("invalid config syntax in '%s': %v", path, err)
		return
	}
	if len(cfg.Messages) == 0 {
		err = fmt.Errorf("no message types defined in '%s'", path)
		return
	}

	definitions = cfg.Messages
	return
}

// Registers definitions (idempotent for identical ones)
func defineTypes(definitions []message.Definition) (err error) {
	for _, definition := range definitions {
		_, err = message.Ensure(definition)
		if err != nil {
			err = fmt.Errorf("failed to define message type '%s': %w", definition.Name, err)
			return
		}
	}
	return
}

// Splits comma separated list, dropping empty items
func splitList(raw string) (items []string) {
	for item := range strings.SplitSeq(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		items = append(items, item)
	}
	return
}

func exitOnError(prefix string, err error) {
	if err == nil {
		return
	}
	if prefix != "" {
		fmt.Fprintf(os.Stderr, "%s: %v\n", prefix, err)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(1)
}
