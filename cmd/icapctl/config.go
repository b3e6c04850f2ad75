package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage icapctl configuration",
	Long:  "Commands for inspecting icapctl configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  "Display the configuration file in use and the daemon settings it resolves to",
	Run: func(cmd *cobra.Command, args []string) {
		configFile := viper.ConfigFileUsed()
		if configFile == "" {
			fmt.Println("No configuration file found")
			fmt.Println("Default locations:")
			home, _ := os.UserHomeDir()
			fmt.Printf("  - %s/.icapctl.yaml\n", home)
			fmt.Printf("  - ./.icapctl.yaml\n")
		} else {
			fmt.Printf("Configuration file: %s\n", configFile)
		}

		fmt.Printf("  listen address: %s\n", viper.GetString("listen"))
		fmt.Printf("  max initial line: %d\n", viper.GetInt("max_initial_line"))
		fmt.Printf("  max icap header: %d\n", viper.GetInt("max_icap_header"))
		fmt.Printf("  max chunk size: %d\n", viper.GetInt("max_chunk_size"))
	},
}
