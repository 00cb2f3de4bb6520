// Command tickmon watches the counter samples a device streams over a
// serial port and checks that every clock source moves forward across
// wraparound. It can also run a simulated device on the host.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/carlmjohnson/versioninfo"
	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

// Config holds the flags shared by all subcommands
type Config struct {
	LogLevel string
	LogFile  string
}

func newRootCommand() *cobra.Command {
	var cfg Config

	cmd := &cobra.Command{
		Use:   "tickmon",
		Short: "Monotonic counter monitor",
		Long: `tickmon decodes sample frames from a device and tracks each clock
source with wraparound-safe arithmetic. It reports wraps, stalls, late
samples, ambiguous gaps of half a counter period or more, and samples
that move backwards.`,
		Example: `  # Monitor a device described by a config file
  tickmon monitor --config tickmon.toml

  # Run a simulated 16-bit source through the monitor for ten seconds
  tickmon simulate --duration 10s --log-level debug`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", "",
		"log level (ERROR, WARNING, NOTICE, INFO, DEBUG); overrides the config file")
	cmd.PersistentFlags().StringVar(&cfg.LogFile, "log-file", "",
		"write logs to this file instead of stdout")

	cmd.AddCommand(newMonitorCommand(&cfg), newSimulateCommand(&cfg))
	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := fang.Execute(
		ctx,
		newRootCommand(),
		fang.WithVersion(versioninfo.Short()),
	); err != nil {
		os.Exit(1)
	}
}
