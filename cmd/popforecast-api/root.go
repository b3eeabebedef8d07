package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/urbanlab/popforecast/internal/config"
	"github.com/urbanlab/popforecast/pkg/log"
)

var rootCmd = &cobra.Command{
	Use: "popforecast-api",
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(migrateCmd)
}

// setup reads the environment configuration and installs the global
// logger at the configured level.
func setup() (*config.Config, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, err
	}
	logger := log.InitLog(log.ParseLevel(cfg.Service.LogLevel))
	zap.ReplaceGlobals(logger)
	return cfg, nil
}
