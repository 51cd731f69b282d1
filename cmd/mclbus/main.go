package main

import (
	"context"
	"flag"
	"fmt"
	"mclbus/internal/cli"
	"mclbus/internal/global"
	"mclbus/internal/logctx"
	"os"
	"runtime"
)

func main() {
	cliOpts := cli.DefineOptions()

	commandFlags := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	requestedLogLevel := cli.SetGlobalArguments(commandFlags)

	commandFlags.Usage = func() {
		cli.PrintHelpMenu(commandFlags, cli.RootCLICommand, cliOpts)
	}
	if len(os.Args) < 2 {
		cli.PrintHelpMenu(commandFlags, cli.RootCLICommand, cliOpts)
		os.Exit(1)
	}
	commandFlags.Parse(os.Args[1:])

	// Retrieve command and args
	if commandFlags.NArg() < 1 {
		cli.PrintHelpMenu(commandFlags, cli.RootCLICommand, cliOpts)
		os.Exit(1)
	}
	command := commandFlags.Arg(0)
	args := commandFlags.Args()[1:]

	// Setting global logging
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	logger := logctx.NewLogger("global", *requestedLogLevel, ctx.Done()) // New logger tied to global
	ctx = logctx.WithLogger(ctx, logger)                                 // Add logger to global ctx
	ctx = logctx.AppendCtxTag(ctx, global.NSCLI)                         // Root tag for everything started here
	logctx.StartWatcher(logger, os.Stdout)                               // Send received output to stdout

	// Process commands
	switch command {
	case "record":
		cli.RecordMode(ctx, cliOpts, command, args)
	case "replay":
		cli.ReplayMode(ctx, cliOpts, command, args)
	case "dump":
		cli.DumpMode(ctx, cliOpts, command, args)
	case "types":
		cli.TypesMode(ctx, cliOpts, command, args)
	case "configure":
		cli.ConfigureMode(cliOpts, command, args)
	case "version":
		if len(args) > 0 && (args[0] == "--verbosity" || args[0] == "-v") {
			fmt.Printf("%s %s\n", global.ProgBaseName, global.ProgVersion)
			fmt.Printf("Built using %s(%s) for %s on %s\n", runtime.Version(), runtime.Compiler, runtime.GOOS, runtime.GOARCH)
		} else {
			fmt.Println(global.ProgVersion)
		}
	default:
		cli.PrintHelpMenu(commandFlags, cli.RootCLICommand, cliOpts)
		os.Exit(1)
	}

	// Finish up any stdout writes for global logger
	cancel()
	logger.Wake()
	logger.Wait()
}
