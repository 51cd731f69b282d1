package cli

import (
	"flag"
	"fmt"
	"io"
	"mclbus/internal/global"
	"os"
	"slices"
	"strings"
)

const (
	RootCLICommand  string = "root"
	helpMenuTrailer string = `
Configuration is read from ` + global.DefaultConfigPath + ` unless --config is given.
`
	menuIndent int = 2 // spaces before section headers
	usageGap   int = 2 // spaces between option names and usage text
)

// Full standardized help menu (wraps option printer as well)
func PrintHelpMenu(fs *flag.FlagSet, command string, rootCmd *global.CommandSet) {
	writeHelpMenu(os.Stdout, fs, command, rootCmd)
}

func writeHelpMenu(out io.Writer, fs *flag.FlagSet, command string, rootCmd *global.CommandSet) {
	path, found := findCommand(rootCmd, command)
	if !found {
		fmt.Fprintf(out, "Unknown command: %s\n", command)
		return
	}
	current := path[len(path)-1]
	isRoot := current == rootCmd

	fmt.Fprintf(out, "Usage: %s\n\n", usageLine(path))

	if isRoot {
		fmt.Fprintln(out, current.Description)
		fmt.Fprintln(out, current.FullDescription)
		fmt.Fprintln(out)
	} else if current.FullDescription != "" {
		fmt.Fprintf(out, "%sDescription:\n", indent(menuIndent))
		fmt.Fprintf(out, "%s%s\n\n", indent(menuIndent+2), current.FullDescription)
	}

	writeSubcommands(out, current)
	writeFlagOptions(out, fs)

	if isRoot {
		fmt.Fprint(out, helpMenuTrailer)
	}
}

// Chain of command sets from root to the named command (two levels deep at most)
func findCommand(rootCmd *global.CommandSet, command string) (path []*global.CommandSet, found bool) {
	if command == "" || command == RootCLICommand {
		path, found = []*global.CommandSet{rootCmd}, true
		return
	}
	if child, ok := rootCmd.ChildCommands[command]; ok {
		path, found = []*global.CommandSet{rootCmd, child}, true
		return
	}
	for _, name := range sortedNames(rootCmd.ChildCommands) {
		top := rootCmd.ChildCommands[name]
		if sub, ok := top.ChildCommands[command]; ok {
			path, found = []*global.CommandSet{rootCmd, top, sub}, true
			return
		}
	}
	return
}

// Program name, command chain (root omitted), then subcommand and value hints
func usageLine(path []*global.CommandSet) string {
	parts := []string{os.Args[0]}
	for _, cmd := range path {
		if cmd.CommandName == RootCLICommand {
			continue
		}
		parts = append(parts, cmd.CommandName)
	}

	current := path[len(path)-1]
	switch len(current.ChildCommands) {
	case 0:
	case 1:
		parts = append(parts, sortedNames(current.ChildCommands)...)
	default:
		parts = append(parts, "[subcommand]")
	}
	if current.UsageOption != "" {
		parts = append(parts, current.UsageOption)
	}
	return strings.Join(parts, " ")
}

func writeSubcommands(out io.Writer, current *global.CommandSet) {
	if len(current.ChildCommands) == 0 {
		return
	}
	names := sortedNames(current.ChildCommands)

	width := 0
	for _, name := range names {
		width = max(width, len(name))
	}

	fmt.Fprintf(out, "%sSubcommands:\n", indent(menuIndent))
	for _, name := range names {
		fmt.Fprintf(out, "%s%-*s  - %s\n", indent(menuIndent+2), width, name, current.ChildCommands[name].Description)
	}
	fmt.Fprintln(out)
}

// One printed option line, aliases sharing usage text are merged
type optionLine struct {
	names      []string // "-c", "--config"
	usage      string
	defaultVal string
}

func (opt optionLine) hasShort() bool {
	return len(opt.names) > 0 && !strings.HasPrefix(opt.names[0], "--")
}

// Short aliases sit in their own column, long-only options line up after it
func writeFlagOptions(out io.Writer, fs *flag.FlagSet) {
	// width of "-x, "
	const shortColumn int = 4

	var options []*optionLine
	byUsage := make(map[string]*optionLine)
	fs.VisitAll(func(arg *flag.Flag) {
		name := "--" + arg.Name
		if len(arg.Name) == 1 {
			name = "-" + arg.Name
		}

		opt, seen := byUsage[arg.Usage]
		if !seen {
			opt = &optionLine{usage: arg.Usage, defaultVal: arg.DefValue}
			byUsage[arg.Usage] = opt
			options = append(options, opt)
		}
		opt.names = append(opt.names, name)
	})

	for _, opt := range options {
		slices.SortFunc(opt.names, func(a, b string) int { return len(a) - len(b) })
	}
	slices.SortFunc(options, func(a, b *optionLine) int {
		return strings.Compare(strings.ToLower(a.names[0]), strings.ToLower(b.names[0]))
	})

	leftWidth := func(opt *optionLine) (width int) {
		width = len(strings.Join(opt.names, ", "))
		if !opt.hasShort() {
			width += shortColumn
		}
		return
	}
	width := 0
	for _, opt := range options {
		width = max(width, leftWidth(opt))
	}

	fmt.Fprintf(out, "%sOptions:\n", indent(menuIndent))
	for _, opt := range options {
		lead := menuIndent
		if !opt.hasShort() {
			lead += shortColumn
		}

		desc := opt.usage
		switch opt.defaultVal {
		case "", "false", "0":
		default:
			desc += fmt.Sprintf(" [default: %s]", opt.defaultVal)
		}

		padding := width - leftWidth(opt) + usageGap
		fmt.Fprintf(out, "%s%s%s%s\n", indent(lead), strings.Join(opt.names, ", "), indent(padding), desc)
	}
}

func sortedNames(commands map[string]*global.CommandSet) (names []string) {
	for name := range commands {
		names = append(names, name)
	}
	slices.Sort(names)
	return
}

func indent(spaces int) string {
	return strings.Repeat(" ", spaces)
}
