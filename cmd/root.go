package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jrvs-oss/toolgateway/internal/config"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeConfiguration indicates the configuration file was invalid or
	// referenced an unknown server.
	ExitCodeConfiguration = 2
)

// rootCmd represents the base command for the gateway CLI. It is the entry
// point when the application is called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "gatewayctl",
	Short: "A resilient gateway that lets a local LLM drive a catalog of MCP tool servers",
	Long: `gatewayctl connects to the MCP tool servers listed in its configuration,
aggregates their tools into a single catalog, and lets a local LLM decide
which tools a request needs and execute them through a resilience-wrapped
client registry (rate limiting, circuit breaking, retry, caching).`,
	SilenceUsage: true,
}

// SetVersion sets the version for the root command, injected at build time
// from main.main().
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "gatewayctl version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(ExitCodeError)
	}
}

// configPath and logLevelOverride are bound to the root command's
// persistent flags and read by every subcommand that loads configuration.
var (
	configPath       string
	logLevelOverride string
	debugFlag        bool
	noCacheFlag      bool
	noRateLimitFlag  bool
)

func init() {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newMCPServersCmd())
	rootCmd.AddCommand(newMCPToolsCmd())
	rootCmd.AddCommand(newMCPCallCmd())
	rootCmd.AddCommand(newMCPModelsCmd())
	rootCmd.AddCommand(newReportCmd())
	rootCmd.AddCommand(newSaveReportCmd())

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to client_config.json (default: mcp_gateway/client_config.json)")
	rootCmd.PersistentFlags().StringVar(&logLevelOverride, "log-level", "", "override logging.level from the config file (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "shorthand for --log-level debug")
	rootCmd.PersistentFlags().BoolVar(&noCacheFlag, "no-cache", false, "disable the resilience layer's response caches")
	rootCmd.PersistentFlags().BoolVar(&noRateLimitFlag, "no-rate-limit", false, "disable the per-endpoint rate limiter")
}

// loadConfigFromFlags loads the configuration document at configPath,
// applying logLevelOverride on top of whatever the file and environment
// resolved to.
func loadConfigFromFlags() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if logLevelOverride != "" {
		cfg.Logging.Level = logLevelOverride
	}
	if debugFlag {
		cfg.Logging.Level = "debug"
	}
	if noCacheFlag {
		cfg.Resilience.Caches.Enabled = false
	}
	if noRateLimitFlag {
		cfg.Resilience.RateLimit.Enabled = false
	}
	return cfg, nil
}
