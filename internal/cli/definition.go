package cli

import "mclbus/internal/global"

func DefineOptions() (cmdOpts *global.CommandSet) {
	// Root level
	root := &global.CommandSet{
		Description:     "MCL Message Bus (mclbus)",
		FullDescription: "  Publishes typed messages over multicast UDP, records bus traffic and replays it",
		CommandName:     RootCLICommand,
		ChildCommands:   make(map[string]*global.CommandSet),
	}

	// Recording
	root.ChildCommands["record"] = &global.CommandSet{
		CommandName:     "record",
		Description:     "Record Bus Traffic",
		FullDescription: "Subscribes to configured message types and writes every delivery to the dump file and/or beats server",
	}

	// Replaying
	root.ChildCommands["replay"] = &global.CommandSet{
		CommandName:     "replay",
		Description:     "Replay Recorded Traffic",
		FullDescription: "Reads a dump file or directory and re-broadcasts its messages with their original relative timing",
	}

	// Dump inspection
	root.ChildCommands["dump"] = &global.CommandSet{
		CommandName:     "dump",
		Description:     "Inspect Dump Files",
		FullDescription: "Prints recorded messages as JSON, or selected fields as CSV",
	}

	// Type listing
	root.ChildCommands["types"] = &global.CommandSet{
		CommandName:     "types",
		Description:     "List Message Types",
		FullDescription: "Validates and prints the message types defined in a configuration file",
	}

	// Setup
	root.ChildCommands["configure"] = &global.CommandSet{
		CommandName:     "configure",
		Description:     "Setup Actions",
		FullDescription: "Create template configuration files",
	}

	// Version Info
	root.ChildCommands["version"] = &global.CommandSet{
		CommandName:     "version",
		Description:     "Show Version Information",
		FullDescription: "Display meta information about program",
	}

	cmdOpts = root
	return
}
