package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/agent-matrix/matrixhub-admin/cmd/matrixhub-admin/cmd/server"
	"github.com/agent-matrix/matrixhub-admin/pkg/config"
	"github.com/agent-matrix/matrixhub-admin/pkg/shared/logging"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the admin console proxy",
	Long: `Start matrixhub-admin with the specified configuration.

The server will:
- Load the configuration file and environment overrides
- Open the session store (memory, leveldb or redis)
- Mount the /api/hub, /api/gateway and /api/health proxy routes
- Guard them with the console login and access rules
- Reload console settings when the configuration file changes
- Handle graceful shutdown on SIGTERM/SIGINT`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// Logging settings come from the file when it parses; the server
	// reports configuration errors itself.
	var logCfg config.LoggingConfig
	if cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			if appCfg, err := config.NewFileLoader(cfgFile).Load(); err == nil {
				logCfg = appCfg.Logging
			}
		}
	}

	level := logging.ParseLevel(logCfg.Level)
	var fileRotationConfig *logging.FileRotationConfig
	if logCfg.File != nil && logCfg.File.Path != "" {
		fileRotationConfig = &logging.FileRotationConfig{
			Path:       logCfg.File.Path,
			MaxSizeMB:  logCfg.File.MaxSizeMB,
			MaxBackups: logCfg.File.MaxBackups,
			MaxAge:     logCfg.File.MaxAge,
			Compress:   logCfg.File.Compress,
		}
	}

	logger, err := logging.NewLoggerWithFile("main", level, logCfg.Color, fileRotationConfig)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	cfg := server.Config{
		ConfigPath: cfgFile,
		Host:       host,
		Port:       port,
		HostSet:    cmd.Flags().Changed("host"),
		PortSet:    cmd.Flags().Changed("port"),
		Logger:     logger,
		Version:    version,
	}

	return server.Run(context.Background(), cfg)
}
