// Package command implements jetinspect's subcommands: read-only
// inspection tools over a Jet database file.
package command

import (
	"io"

	"github.com/mattn/go-colorable"

	"github.com/kjhughes/jetdb"
)

// stdout returns a writer that translates ANSI escapes on platforms that
// need it (Windows consoles); everywhere else it is os.Stdout unchanged.
func stdout() io.Writer {
	return colorable.NewColorableStdout()
}

const (
	ansiBold  = "\x1b[1m"
	ansiReset = "\x1b[0m"
)

func openReadOnly(path string) (*jetdb.Database, error) {
	return jetdb.Open(path, jetdb.WithReadOnly())
}
