// Package cli implements the govcore command tree.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentfabric/govcore/internal/boot"
	"github.com/agentfabric/govcore/internal/config"
	"github.com/agentfabric/govcore/internal/policy"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "govcore",
	Short: "Multi-tenant governance enforcement core",
	Long: "Loads signed compliance policies, verifies the tenant hierarchy for\n" +
		"downgrades, keeps a hash-chained audit ledger, and gates agent\n" +
		"execution behind declaratively registered enforcement layers.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config YAML (default ~/.govcore/config.yaml)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig resolves the service configuration for a command run.
func loadConfig() (*config.Config, error) {
	cfg, hash, err := config.LoadConfigWithHash(configPath)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(os.Stderr, "config: %s\n", hash)
	return cfg, nil
}

// bootSystem runs the startup verification sequence. Configuration faults
// exit with EX_CONFIG so wrappers can tell bad config from runtime failure.
func bootSystem() (*boot.System, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	sys, err := boot.Up(cfg, os.Stderr)
	if err != nil {
		var be *policy.BootError
		if errors.As(err, &be) {
			fmt.Fprintf(os.Stderr, "FATAL: %v\n", be)
			os.Exit(78) // EX_CONFIG
		}
		return nil, err
	}
	return sys, nil
}
