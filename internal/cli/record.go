package cli

import (
	"context"
	"flag"
	"mclbus/internal/global"
	"mclbus/internal/lifecycle"
	"mclbus/internal/logctx"
	"mclbus/internal/recorder"
)

func RecordMode(ctx context.Context, cliOpts *global.CommandSet, commandname string, args []string) {
	var configPath string
	commandFlags := flag.NewFlagSet(commandname, flag.ExitOnError)
	SetCommon(commandFlags, &configPath)

	commandFlags.Usage = func() {
		PrintHelpMenu(commandFlags, commandname, cliOpts)
	}
	commandFlags.Parse(args)

	jsonCfg, err := recorder.LoadConfig(configPath)
	exitOnError("", err)

	daemonConfig, err := jsonCfg.NewDaemonConf()
	exitOnError("", err)

	recDaemon := recorder.NewDaemon(daemonConfig)
	err = recDaemon.Start(ctx)
	exitOnError("Error starting record daemon", err)

	err = lifecycle.NotifyReady(ctx)
	if err != nil {
		logctx.LogEvent(ctx, global.VerbosityStandard, global.WarnLog, "Systemd notify ready failed: %v\n", err)
	}

	go lifecycle.SignalHandler(ctx, recDaemon)

	recDaemon.Run()
}
