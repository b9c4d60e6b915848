// Command jongodb is the demonstration server and one-shot command
// runner for the in-memory document-database command layer (spec §1).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jongodb/jongodb/pkg/log"
)

var (
	// Version, Commit, and BuildTime are set via -ldflags at build time.
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"

	cfgPath  string
	logLevel string
	logJSON  bool
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "jongodb",
		Short:         "In-memory document-database command layer",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, BuildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&logJSON, "log-json", false, "emit logs as JSON instead of console format")

	cobra.OnInitialize(initLogging)

	root.AddCommand(serveCmd())
	root.AddCommand(execCmd())
	return root
}

func initLogging() {
	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}
