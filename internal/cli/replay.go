package cli

import (
	"context"
	"flag"
	"fmt"
	"mclbus/internal/global"
	"mclbus/internal/lifecycle"
	"mclbus/internal/logctx"
	"mclbus/internal/player"
	"os"
)

func ReplayMode(ctx context.Context, cliOpts *global.CommandSet, commandname string, args []string) {
	var configPath string
	var source string
	var speed float64
	var bufferLength int
	var minTime, maxTime float64

	commandFlags := flag.NewFlagSet(commandname, flag.ExitOnError)
	SetCommon(commandFlags, &configPath)
	commandFlags.StringVar(&source, "s", "", "Dump file or directory to replay (overrides config)")
	commandFlags.StringVar(&source, "source", "", "Dump file or directory to replay (overrides config)")
	commandFlags.Float64Var(&speed, "speed", global.DefaultReplaySpeed, "Replay speed multiplier (2 is twice as fast)")
	commandFlags.IntVar(&bufferLength, "buffer", 0, "Records read ahead of the replay (0 reads the whole dump)")
	commandFlags.Float64Var(&minTime, "min", 0, "Skip records earlier than this many seconds into the dump")
	commandFlags.Float64Var(&maxTime, "max", 0, "Stop at records later than this many seconds into the dump (0 is unlimited)")

	commandFlags.Usage = func() {
		PrintHelpMenu(commandFlags, commandname, cliOpts)
	}
	commandFlags.Parse(args)

	jsonCfg, err := player.LoadConfig(configPath)
	exitOnError("", err)

	// Explicit flags win over config values
	commandFlags.Visit(func(set *flag.Flag) {
		switch set.Name {
		case "s", "source":
			jsonCfg.Replay.Source = source
		case "speed":
			jsonCfg.Replay.Speed = speed
		case "buffer":
			jsonCfg.Replay.BufferLength = bufferLength
		case "min":
			jsonCfg.Replay.MinTime = minTime
		case "max":
			jsonCfg.Replay.MaxTime = maxTime
		}
	})

	playerConfig, err := jsonCfg.NewPlayerConf()
	exitOnError("", err)

	ctx, stop := lifecycle.SignalContext(ctx)
	defer stop()

	err = lifecycle.NotifyReady(ctx)
	if err != nil {
		logctx.LogEvent(ctx, global.VerbosityStandard, global.WarnLog, "Systemd notify ready failed: %v\n", err)
	}

	result, err := player.Run(ctx, playerConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error during replay: %v\n", err)
	}

	printResult(result)
	if err != nil {
		os.Exit(1)
	}
}

func printResult(result player.Result) {
	state := "completed"
	if !result.Completed {
		state = "interrupted"
	}
	fmt.Printf("Replay %s after %.3fs: %d published, %d failed, %d skipped, %d late\n",
		state, result.Duration, result.Published, result.PublishErrors, result.Skipped, result.Late)
}
