package command

import (
	"flag"
	"fmt"
	"sort"
	"strings"

	"github.com/posener/complete"
)

// TablesCommand lists every table in a database's object directory.
type TablesCommand struct{}

func (c *TablesCommand) Help() string {
	return strings.TrimSpace(`
Usage: jetinspect tables <path>

Lists every table registered in the database's object directory.
`)
}

func (c *TablesCommand) Synopsis() string { return "List tables in a database file" }

func (c *TablesCommand) Run(args []string) int {
	flags := flag.NewFlagSet("tables", flag.ContinueOnError)
	if err := flags.Parse(args); err != nil {
		return 1
	}
	rest := flags.Args()
	if len(rest) != 1 {
		fmt.Fprintln(stdout(), c.Help())
		return 1
	}

	db, err := openReadOnly(rest[0])
	if err != nil {
		fmt.Fprintf(stdout(), "error opening %s: %v\n", rest[0], err)
		return 1
	}
	defer db.Close()

	names := db.Catalog.TableNames()
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(stdout(), "%s%s%s\n", ansiBold, name, ansiReset)
	}
	return 0
}

func (c *TablesCommand) AutocompleteArgs() complete.Predictor {
	return complete.PredictFiles("*.accdb")
}

func (c *TablesCommand) AutocompleteFlags() complete.Flags {
	return complete.Flags{}
}
