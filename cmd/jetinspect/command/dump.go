package command

import (
	"flag"
	"fmt"
	"strings"

	"github.com/posener/complete"

	"github.com/kjhughes/jetdb"
)

// DumpCommand walks every live row of a table in page/slot order and
// prints its decoded values, skipping rows that fail to decode instead of
// aborting the whole scan.
type DumpCommand struct{}

func (c *DumpCommand) Help() string {
	return strings.TrimSpace(`
Usage: jetinspect dump <path> <table>

Prints every live row of a table, one line per row. Rows that fail to
decode are reported and skipped rather than aborting the scan.
`)
}

func (c *DumpCommand) Synopsis() string { return "Dump every row of a table" }

func (c *DumpCommand) Run(args []string) int {
	flags := flag.NewFlagSet("dump", flag.ContinueOnError)
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

	out := stdout()
	onError := func(id jetdb.RowID, err error) bool {
		fmt.Fprintf(out, "! skipping row %v: %v\n", id, err)
		return true
	}

	cur, err := jetdb.NewTableScanCursor(tbl, onError)
	if err != nil {
		fmt.Fprintf(out, "error creating cursor: %v\n", err)
		return 1
	}

	count := 0
	for {
		ok, err := cur.Next()
		if err != nil {
			fmt.Fprintf(out, "error scanning: %v\n", err)
			return 1
		}
		if !ok {
			break
		}
		_, values, _ := cur.Current()
		fmt.Fprintf(out, "%v\n", values)
		count++
	}
	fmt.Fprintf(out, "%s%d rows%s\n", ansiBold, count, ansiReset)
	return 0
}

func (c *DumpCommand) AutocompleteArgs() complete.Predictor {
	return complete.PredictFiles("*.accdb")
}

func (c *DumpCommand) AutocompleteFlags() complete.Flags {
	return complete.Flags{}
}
