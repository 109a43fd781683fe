// Command replicatord runs the log replication core as a standalone
// process: it tails a length-framed log file and replays it into a
// pebble-backed page buffer, exposing progress over OpenTelemetry
// metrics.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	_ "go.uber.org/automaxprocs"
)

func main() {
	app := &cli.App{
		Name:  "replicatord",
		Usage: "run the page server log replication core",
		Flags: appFlags(),
		Action: runApp,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
