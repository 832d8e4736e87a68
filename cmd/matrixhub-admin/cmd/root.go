package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	host    string
	port    int
	version = "dev"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "matrixhub-admin",
	Short: "Admin console proxy for Matrix Hub and the MCP gateway",
	Long: `matrixhub-admin serves the same-origin API the Matrix Hub admin console
talks to. It forwards catalog, install, ingest, remotes and gateway
registration calls to the configured upstreams, attaches the server-held
bearer tokens on admin routes and answers every failure with a JSON
{"error","detail"} envelope. Console logins are guarded by a session cookie.

Running without a subcommand starts the server.`,
	Version: version,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCmd.RunE(cmd, args)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path (.yaml, .yml, .json, .jsonc)")
	rootCmd.PersistentFlags().StringVar(&host, "host", "0.0.0.0", "host to listen on")
	rootCmd.PersistentFlags().IntVarP(&port, "port", "p", 3000, "port to listen on")
}
