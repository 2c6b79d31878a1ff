// Package cli wires the allocation service into the furniture command.
package cli

import (
	"github.com/spf13/cobra"
)

// version is overridden at build time with -ldflags "-X".
var version = "dev"

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "furniture",
	Short: "Allocate order lines to stock batches",
	Long: `furniture runs the stock allocation service: an HTTP API, a Kafka
consumer and one-shot commands that push batches and order lines through
the same message bus.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a TOML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
