// Package cli holds the identityd command tree.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gigmarket/identity/internal/pkg/config"
	"github.com/gigmarket/identity/pkg/logger"
)

// version is stamped at build time with -ldflags "-X ...cli.version=...".
var version = "dev"

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "identityd",
	Short: "Identity and session service",
	Long: `identityd authenticates users by password or wallet signature, issues
session tokens and serves role-scoped dashboards.`,
	SilenceUsage: true,
	Version:      version,
}

// Execute runs the command tree. It is called once from main.
func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bootstrap loads configuration and initialises the process logger.
func bootstrap(ctx context.Context) (*config.Config, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}
	format := logger.FormatJSON
	if cfg.IsDevelopment() {
		format = logger.FormatConsole
	}
	logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Format:  format,
		Service: "identityd",
		Version: version,
	})
	return cfg, nil
}
