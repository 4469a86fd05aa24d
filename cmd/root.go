// Package cmd implements the ircord CLI using cobra.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ircord/pkg/config"
)

var configPath string

// rootCmd relays by default so a bare `ircord` starts the bridge.
var rootCmd = &cobra.Command{
	Use:           "ircord",
	Short:         "Relay chat between IRC channels and Discord channels",
	Long:          "ircord bridges IRC and Discord: it mirrors messages between mapped channels and expands #123 issue references into titles and links.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runRelay,
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the TOML configuration file (default $IRCORD_CONFIG, then "+config.DefaultPath+")")
}
