package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:   "smart-climate",
	Short: "Adaptive AC offset learning service",
	Long:  "Learns the lag between an AC unit's internal sensor and the real room temperature, then serves corrected setpoint offsets over MQTT, HTTP and WebSocket.",
}

var flagConfig string

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "smart-climate.toml", "path to configuration file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(inspectCmd)
}

// newLogger builds the process logger. Errors here are unrecoverable.
func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
