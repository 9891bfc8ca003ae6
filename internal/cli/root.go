// Package cli implements the insightdesk command tree.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kiranshivaraju/insightdesk/internal/config"
	"github.com/kiranshivaraju/insightdesk/internal/store"
)

// envFile holds the --env-file persistent flag value.
var envFile string

// Execute creates the root command tree and runs it.
func Execute(ctx context.Context, version string) error {
	return newRootCmd(version).ExecuteContext(ctx)
}

func newRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "insightdesk",
		Short: "API key credentials and token exchange for InsightDesk",
		Long: `InsightDesk issues long-lived API keys to users and tenants, accepts them
directly in the Authorization header, and exchanges them for short-lived
access tokens at the OAuth2 token endpoint.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&envFile, "env-file", "", "path to a .env file (environment variables take precedence)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newUserCmd())
	cmd.AddCommand(newKeyCmd())
	cmd.AddCommand(newClientCmd())

	return cmd
}

func loadConfig() (*config.Config, error) {
	if envFile != "" {
		return config.LoadFile(envFile)
	}
	return config.Load()
}

// withStore loads the config, connects to Postgres and runs fn.
func withStore(ctx context.Context, fn func(ctx context.Context, cfg *config.Config, st *store.PostgresStore) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	return fn(ctx, cfg, store.NewPostgresStore(pool))
}
