package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/haukened/wb-access/internal/access/common/log"
	"github.com/haukened/wb-access/internal/access/config"
)

const appName = "wb-accessd"

var version = "0.1.0-dev"

var (
	whitelistFlag string
	canonFlag     string
)

var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "SURT whitelist access control for web-archive replay",
	Long: `Decides whether archived captures may be shown, based on a file of
SURT prefixes that is reloaded when it changes.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("%s version %s\n", appName, version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&whitelistFlag, "whitelist", "w", "", "whitelist file (overrides WBA_WHITELIST_FILE)")
	rootCmd.PersistentFlags().StringVarP(&canonFlag, "canonicalizer", "c", "", "aggressive or surt (overrides WBA_CANONICALIZER)")
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the configuration, applies command-line overrides and
// configures the global logger.
func loadConfig() (*config.AppConfig, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	if whitelistFlag != "" {
		cfg.WhitelistFile = whitelistFlag
	}
	if canonFlag != "" {
		cfg.Canonicalizer = canonFlag
	}
	if err := log.Configure(cfg.Env, cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("logging configuration error: %w", err)
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		os.Exit(1)
	}
}
