package cli

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mclbus/internal/global"
	"mclbus/internal/player"
	"mclbus/internal/recorder"
	"mclbus/pkg/connection"
	"mclbus/pkg/message"
	"os"
	"strings"

	"golang.org/x/term"
)

// Setup options
func ConfigureMode(cliOpts *global.CommandSet, commandname string, args []string) {
	var recordTemplatePath string
	var replayTemplatePath string

	commandFlags := flag.NewFlagSet(commandname, flag.ExitOnError)
	commandFlags.StringVar(&recordTemplatePath, "record-template", "", "Create new template config for the record daemon at this path")
	commandFlags.StringVar(&replayTemplatePath, "replay-template", "", "Create new template config for the replay command at this path")

	commandFlags.Usage = func() {
		PrintHelpMenu(commandFlags, commandname, cliOpts)
	}
	if len(args) < 1 {
		PrintHelpMenu(commandFlags, commandname, cliOpts)
		os.Exit(1)
	}
	commandFlags.Parse(args)

	var err error
	if recordTemplatePath != "" {
		if confirmOverwrite(recordTemplatePath, os.Stdin, os.Stdout) {
			err = CreateRecordTemplateConfig(recordTemplatePath)
			exitOnError("", err)
			fmt.Printf("Successfully wrote template configuration file to '%s'\n", recordTemplatePath)
		}
	} else if replayTemplatePath != "" {
		if confirmOverwrite(replayTemplatePath, os.Stdin, os.Stdout) {
			err = CreateReplayTemplateConfig(replayTemplatePath)
			exitOnError("", err)
			fmt.Printf("Successfully wrote template configuration file to '%s'\n", replayTemplatePath)
		}
	} else {
		PrintHelpMenu(commandFlags, commandname, cliOpts)
		os.Exit(1)
	}
}

// True when path is free, or the user agrees to replace it.
// Without a terminal existing files are never replaced.
func confirmOverwrite(path string, input io.Reader, output io.Writer) (proceed bool) {
	_, err := os.Stat(path)
	if err != nil {
		proceed = true
		return
	}

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintf(output, "Existing configuration file present, not overwriting\n")
		return
	}

	proceed = askYes(input, output, fmt.Sprintf("Configuration file already exists at '%s'. Are you SURE you want to overwrite it? (yes/no): ", path))
	if !proceed {
		fmt.Fprintf(output, "Not overwriting configuration file\n")
	}
	return
}

func askYes(input io.Reader, output io.Writer, question string) (yes bool) {
	fmt.Fprint(output, question)
	reader := bufio.NewReader(input)
	answer, _ := reader.ReadString('\n')
	yes = strings.ToLower(strings.TrimSpace(answer)) == "yes"
	return
}

// Example message types for templates
func templateMessages() (definitions []message.Definition) {
	definitions = []message.Definition{
		{
			Name:      "Position",
			Mandatory: []string{"x", "y", "z"},
			Endpoint: connection.Endpoint{
				Address: "239.0.0.1",
				Port:    connection.DefaultPort,
				TTL:     connection.DefaultTTL,
			},
		},
		{
			Name:      "Status",
			Mandatory: []string{"state"},
			Endpoint: connection.Endpoint{
				Address: "239.0.0.2",
				Port:    connection.DefaultPort + 1,
				TTL:     connection.DefaultTTL,
			},
		},
	}
	return
}

func CreateRecordTemplateConfig(filepath string) (err error) {
	var newCfg recorder.JSONConfig
	newCfg.Messages = templateMessages()
	newCfg.Record.Types = []string{"Position", "Status"}

	newCfg.Outputs.FilePath = "/var/log/mclbus/bus.dump"
	newCfg.Outputs.BeatsAddress = "127.0.0.1:5044"
	newCfg.Outputs.JournaldURL = "http://127.0.0.1:19532"
	newCfg.Outputs.QueueSize = global.DefaultMaxQueueSize

	newCfg.Metrics.MaxAge = "1h"
	newCfg.Metrics.Interval = "5s"
	newCfg.Metrics.QueryServerPort = global.HTTPListenPortRecorder

	err = writeTemplate(filepath, newCfg)
	return
}

func CreateReplayTemplateConfig(filepath string) (err error) {
	var newCfg player.JSONConfig
	newCfg.Messages = templateMessages()
	newCfg.Replay.Source = "/var/log/mclbus/bus.dump"
	newCfg.Replay.Speed = global.DefaultReplaySpeed
	newCfg.Replay.BufferLength = global.DefaultMaxQueueSize

	err = writeTemplate(filepath, newCfg)
	return
}

func writeTemplate(filepath string, newCfg any) (err error) {
	if filepath == "" {
		err = fmt.Errorf("specify template file path")
		return
	}

	confBytes, err := json.MarshalIndent(newCfg, "", "  ")
	if err != nil {
		err = fmt.Errorf("error marshaling new config: %v", err)
		return
	}
	confBytes = append(confBytes, []byte("\n")...)

	err = os.WriteFile(filepath, confBytes, 0600)
	if err != nil {
		err = fmt.Errorf("failed to write config to file: %v", err)
		return
	}
	return
}
