package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logFile  string
	logLevel string
	verbose  bool
)

var rootCmd = &cobra.Command{
	Use:   "logdex",
	Short: "Index, filter and browse large log files",
	Long: `logdex indexes log files and live streams, filters them with
include/exclude rules and quick error filters, and keeps bookmarks per
source across sessions.

Sources:
  app.log          a file (gzip, zstd and lz4 are decompressed)
  a.log b.log      several files merged with [name:line] prefixes
  -                standard input as a live stream`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the command line
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		printError(err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/logdex/config.toml)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write diagnostic logs to this file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "TRACE, DEBUG, INFO, WARN or ERROR")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log to stdout (non-interactive commands)")
}

func printError(err error) {
	fmt.Fprintf(os.Stderr, "%s %v\n", color.New(color.FgRed, color.Bold).Sprint("error:"), err)
}
