package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Global flags.
var (
	configPath string
	envFile    string
)

var RootCmd = &cobra.Command{
	Use:     "waypoint",
	Version: Version,
	Short:   "A hierarchical task server for MCP clients",
	Long: `Waypoint keeps a hierarchical task list in an embedded SQLite database
and serves it to MCP clients over stdio, HTTP, WebSocket or gRPC.

Configuration is read from waypoint.yaml (or --config), then .env,
then WAYPOINT_* environment variables.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the command line and reports any failure on stderr.
func Execute() error {
	err := RootCmd.Execute()
	Report(os.Stderr, err)
	return err
}

func init() {
	RootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the YAML config file (default ./waypoint.yaml)")
	RootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to a .env file with WAYPOINT_* overrides")
}
