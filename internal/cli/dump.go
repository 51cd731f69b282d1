package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mclbus/internal/externalio/file"
	"mclbus/internal/global"
	"os"
)

func DumpMode(ctx context.Context, cliOpts *global.CommandSet, commandname string, args []string) {
	var configPath string
	var source string
	var keyList string
	var csvPath string
	var minTime, maxTime float64

	commandFlags := flag.NewFlagSet(commandname, flag.ExitOnError)
	SetCommon(commandFlags, &configPath)
	commandFlags.StringVar(&source, "s", "", "Dump file or directory to read")
	commandFlags.StringVar(&source, "source", "", "Dump file or directory to read")
	commandFlags.StringVar(&keyList, "k", "", "Comma separated fields to export as CSV columns")
	commandFlags.StringVar(&keyList, "keys", "", "Comma separated fields to export as CSV columns")
	commandFlags.StringVar(&csvPath, "csv", "", "Write CSV to this path instead of stdout (requires --keys)")
	commandFlags.Float64Var(&minTime, "min", 0, "Skip records earlier than this many seconds into the dump")
	commandFlags.Float64Var(&maxTime, "max", 0, "Stop at records later than this many seconds into the dump (0 is unlimited)")

	commandFlags.Usage = func() {
		PrintHelpMenu(commandFlags, commandname, cliOpts)
	}
	if len(args) < 1 {
		PrintHelpMenu(commandFlags, commandname, cliOpts)
		os.Exit(1)
	}
	commandFlags.Parse(args)

	definitions, err := loadDefinitions(configPath)
	exitOnError("", err)
	err = defineTypes(definitions)
	exitOnError("", err)

	err = runDump(ctx, os.Stdout, source, splitList(keyList), csvPath, minTime, maxTime)
	exitOnError("", err)
}

// Prints a dump as JSON, or as CSV when keys are given
func runDump(ctx context.Context, stdout io.Writer, source string, keys []string, csvPath string, minTime, maxTime float64) (err error) {
	if source == "" {
		err = fmt.Errorf("no dump source given (use --source)")
		return
	}
	if csvPath != "" && len(keys) == 0 {
		err = fmt.Errorf("CSV export needs at least one field (use --keys)")
		return
	}

	if len(keys) == 0 {
		var items []file.DumpItem
		items, err = file.DumpToList(ctx, source, minTime, maxTime)
		if err != nil {
			return
		}

		var out []byte
		out, err = json.MarshalIndent(items, "", "  ")
		if err != nil {
			err = fmt.Errorf("failed to format dump: %v", err)
			return
		}
		out = append(out, '\n')
		_, err = stdout.Write(out)
		return
	}

	output := stdout
	if csvPath != "" {
		var csvFile *os.File
		csvFile, err = os.OpenFile(csvPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
		if err != nil {
			err = fmt.Errorf("failed to open CSV output: %v", err)
			return
		}
		defer func() {
			closeErr := csvFile.Close()
			if err == nil && closeErr != nil {
				err = fmt.Errorf("failed to close CSV output: %v", closeErr)
			}
		}()
		output = csvFile
	}

	rows, err := file.DumpToCSV(ctx, source, output, keys, minTime, maxTime)
	if err != nil {
		return
	}
	if csvPath != "" {
		fmt.Fprintf(stdout, "Wrote %d rows to '%s'\n", rows, csvPath)
	}
	return
}
