package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"payplan/internal/cli"
	applog "payplan/internal/log"
)

var (
	// Version is set via ldflags when building.
	Version = "dev"

	commands struct {
		Version kong.VersionFlag `help:"Show version information"`
		Commands
	}
)

func main() {
	cli.LoadEnvFile()

	lc := applog.DefaultConfig()
	lc.Component = "payplanctl"
	lc.Level = slog.LevelWarn
	lc.Output = os.Stderr
	applog.SetDefault(applog.New(lc))

	ctx := kong.Parse(&commands,
		kong.Vars{"version": Version},
		kong.Name("payplanctl"),
		kong.Description("Inspect and repair payment schedules."),
		kong.UsageOnError(),
		kong.Bind(&commands.Globals),
	)

	if err := ctx.Run(); err != nil {
		printError(ctx.Stderr, err.Error())
		_, _ = fmt.Fprintln(ctx.Stderr)
		os.Exit(1)
	}
}
