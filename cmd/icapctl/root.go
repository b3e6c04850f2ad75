// Command icapctl is the operator CLI for the ICAP decoder: it can run
// the daemon in the foreground, decode a captured ICAP conversation from
// a file for offline inspection, and report its own configuration — the
// same cobra/viper layering the TokenShield CLI used for its admin
// commands, repointed at a protocol decoder instead of a REST API.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "icapctl",
	Short: "icapctl manages and inspects the ICAP decoding daemon",
	Long: `icapctl is a command-line tool for operating the ICAP daemon.

It provides commands to:
- Run the daemon in the foreground (serve)
- Decode a captured ICAP conversation from a file (decode)
- Inspect the active configuration (config show)`,
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".icapctl")
	}

	viper.SetEnvPrefix("ICAP")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.icapctl.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(configCmd)

	configCmd.AddCommand(configShowCmd)
}
