// Package cli wires the dormwatt commands.
package cli

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/weilai0412/dormwatt/internal/config"
)

// Version is set at build time via ldflags.
var Version = "dev"

var (
	cfgFile  string
	logLevel string
	logFile  string
)

var rootCmd = &cobra.Command{
	Use:   "dormwatt",
	Short: "dormwatt - dormitory electricity balance watcher",
	Long: `dormwatt polls the prepaid electricity balance of one or more dormitory
rooms through the university's unified identity portal and notifies the
configured recipients by email and ServerChan push when a balance drops
below the alert threshold.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config document (default: the externally managed active document)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also log to this file")
}

// loadConfig resolves the document path: a positional argument wins over
// the --config flag, which wins over the default active document.
func loadConfig(args []string) (*config.Config, error) {
	path := cfgFile
	if len(args) > 0 {
		path = args[0]
	}
	return config.Load(path)
}
