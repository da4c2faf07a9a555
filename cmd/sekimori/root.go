package main

import (
	"fmt"
	"os"

	"github.com/harunnryd/sekimori/internal/config"
	"github.com/harunnryd/sekimori/internal/logger"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "sekimori",
	Short: "Sekimori approval gateway",
	Long:  `Sekimori guards an autonomous coding agent behind chat-driven human approval.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cmd)
		if err != nil {
			return err
		}

		logger.Setup(cfg.Server.LogLevel, cfg.Server.LogFormat)
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.sekimori/config.yaml)")
	rootCmd.PersistentFlags().String("server.log_level", config.DefaultServerLogLevel, "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("server.log_format", config.DefaultServerLogFormat, "log format (text, json)")
	rootCmd.PersistentFlags().Int("server.port", config.DefaultServerPort, "server port")
}
