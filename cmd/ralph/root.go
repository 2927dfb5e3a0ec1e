package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ralphtool/ralph/internal/logging"
)

const version = "0.1.0"

var (
	cfgFile string
	debug   bool
	rootCmd = &cobra.Command{
		Use:   "ralph",
		Short: "ralph drives a coding agent through a change's tasks document",
	}
)

// Execute runs the root command.
func Execute() error {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", filepath.Join(".ralph", "config.json"), "config file path")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	if err := viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config")); err != nil {
		return fmt.Errorf("bind config flag: %w", err)
	}
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		logging.Init(debug)
	}
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(contextCmd())
	rootCmd.AddCommand(markVerifiedCmd())
	rootCmd.AddCommand(runsCmd())
	rootCmd.AddCommand(learningsCmd())
	rootCmd.AddCommand(mcpCmd())
	rootCmd.AddCommand(uiCmd())
	return rootCmd.Execute()
}

func initConfig() {
	path := cfgFile
	if path == "" {
		path = filepath.Join(".ralph", "config.json")
	}
	viper.SetConfigFile(path)
	viper.SetConfigType("json")
}
