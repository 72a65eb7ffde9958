package command

import (
	"flag"
	"fmt"
	"strings"

	"github.com/posener/complete"
)

// StatsCommand prints a single table's row and page counts.
type StatsCommand struct{}

func (c *StatsCommand) Help() string {
	return strings.TrimSpace(`
Usage: jetinspect stats <path> <table>

Prints the row count and page count for the named table.
`)
}

func (c *StatsCommand) Synopsis() string { return "Print row/page counts for a table" }

func (c *StatsCommand) Run(args []string) int {
	flags := flag.NewFlagSet("stats", flag.ContinueOnError)
	if err := flags.Parse(args); err != nil {
		return 1
	}
	rest := flags.Args()
	if len(rest) != 2 {
		fmt.Fprintln(stdout(), c.Help())
		return 1
	}

	db, err := openReadOnly(rest[0])
	if err != nil {
		fmt.Fprintf(stdout(), "error opening %s: %v\n", rest[0], err)
		return 1
	}
	defer db.Close()

	tbl, err := db.Catalog.OpenTable(rest[1])
	if err != nil {
		fmt.Fprintf(stdout(), "error opening table %s: %v\n", rest[1], err)
		return 1
	}

	stats, err := tbl.Stats()
	if err != nil {
		fmt.Fprintf(stdout(), "error reading stats: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout(), "%s%s%s\n  rows:  %d\n  pages: %d\n", ansiBold, rest[1], ansiReset, stats.RowCount, stats.PageCount)
	return 0
}

func (c *StatsCommand) AutocompleteArgs() complete.Predictor {
	return complete.PredictFiles("*.accdb")
}

func (c *StatsCommand) AutocompleteFlags() complete.Flags {
	return complete.Flags{}
}
