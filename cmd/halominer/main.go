package main

import (
	"log"
	"os"

	"github.com/ordishs/gocore"
	"github.com/urfave/cli/v2"
)

// Name used by build script for the binaries. (Please keep on single line)
const progname = "halominer"

// Version & commit strings injected at build with -ldflags -X...
var version string
var commit string

func init() {
	gocore.SetInfo(progname, version, commit)
}

func main() {
	app := &cli.App{
		Name:    progname,
		Usage:   "proof of work miner for a single node devnet",
		Version: version,
		Commands: []*cli.Command{
			startCommand(),
			mineCommand(),
			keygenCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
