package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"github.com/stubborncoder/vdocs/cmd/vdocs/commands"
)

// Set at build time with: -ldflags "-X main.version=1.0.0"
var version = "dev"

func main() {
	cli := &commands.CLI{}
	parser := kong.Parse(cli,
		kong.Description("Turns instructional videos into structured, versioned, multi-language documentation."),
		kong.Vars{"version": version},
	)

	globals := &commands.Global{Logger: slog.Default()}

	if err := parser.Run(globals, cli); err != nil {
		slog.Error(err.Error())
		os.Exit(commands.ExitCodeFor(err))
	}
}
