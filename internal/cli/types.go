package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"mclbus/internal/global"
	"mclbus/pkg/message"
	"os"
	"strings"
	"text/tabwriter"
)

func TypesMode(ctx context.Context, cliOpts *global.CommandSet, commandname string, args []string) {
	var configPath string
	commandFlags := flag.NewFlagSet(commandname, flag.ExitOnError)
	SetCommon(commandFlags, &configPath)

	commandFlags.Usage = func() {
		PrintHelpMenu(commandFlags, commandname, cliOpts)
	}
	commandFlags.Parse(args)

	definitions, err := loadDefinitions(configPath)
	exitOnError("", err)
	err = defineTypes(definitions)
	exitOnError("Invalid message types", err)

	err = printTypes(os.Stdout, definitions)
	exitOnError("", err)
}

// Table of registered types in definition order
func printTypes(output io.Writer, definitions []message.Definition) (err error) {
	table := tabwriter.NewWriter(output, 0, 4, 2, ' ', 0)
	fmt.Fprintln(table, "NAME\tENDPOINT\tTTL\tMANDATORY")

	for _, definition := range definitions {
		var msgType *message.Type
		msgType, err = message.Lookup(definition.Name)
		if err != nil {
			return
		}

		mandatory := strings.Join(msgType.Mandatory(), ",")
		if mandatory == "" {
			mandatory = "-"
		}
		fmt.Fprintf(table, "%s\t%s\t%d\t%s\n", msgType.Name(), msgType.Endpoint().String(), msgType.Endpoint().TTL, mandatory)
	}

	err = table.Flush()
	return
}
