package fedctl

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/giantswarm/fedctl/pkg/logging"
)

// Global flags shared by every subcommand.
var (
	configFile   string
	logFormat    string
	logLevelFlag string
	gatewayAddr  string
)

// rootCmd represents the base command for the fedctl application.
var rootCmd = &cobra.Command{
	Use:   "fedctl",
	Short: "Federation Orchestrator: turn natural-language intents into MCP workflows",
	Long: `fedctl runs the Federation Orchestrator: it parses natural-language
intents into multi-step plans and dispatches the steps to a fleet of
MCP (Model Context Protocol) services, tracking each workflow's
progress through to completion.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := parseLogLevel(logLevelFlag)
		logging.Init(logFormat, level, os.Stderr)
		return nil
	},
}

// SetVersion sets the version for the root command. Called from
// main() to inject the build-time version string.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the entry point called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "fedctl version %s\n" .Version}}`)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func parseLogLevel(s string) logging.LogLevel {
	switch s {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "fedctl.yaml", "path to the orchestrator config file")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log output format: text or json")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&gatewayAddr, "gateway", "http://localhost:8080", "Gateway base URL (used by submit/status)")
}
