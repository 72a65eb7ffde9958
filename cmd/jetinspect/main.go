package main

import (
	"fmt"
	"os"

	"github.com/mitchellh/cli"

	"github.com/kjhughes/jetdb/cmd/jetinspect/command"
)

func main() {
	args := os.Args[1:]

	commands := map[string]cli.CommandFactory{
		"tables": func() (cli.Command, error) {
			return &command.TablesCommand{}, nil
		},
		"stats": func() (cli.Command, error) {
			return &command.StatsCommand{}, nil
		},
		"dump": func() (cli.Command, error) {
			return &command.DumpCommand{}, nil
		},
	}

	app := &cli.CLI{
		Name:         "jetinspect",
		Args:         args,
		Commands:     commands,
		HelpFunc:     cli.BasicHelpFunc("jetinspect"),
		Autocomplete: true,
	}

	exitCode, err := app.Run()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err.Error())
		os.Exit(1)
	}

	os.Exit(exitCode)
}
