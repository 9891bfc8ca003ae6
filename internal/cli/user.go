package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kiranshivaraju/insightdesk/internal/config"
	"github.com/kiranshivaraju/insightdesk/internal/store"
	"github.com/kiranshivaraju/insightdesk/pkg/models"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users that own API keys",
	}
	cmd.AddCommand(newUserCreateCmd())
	return cmd
}

type userCreator interface {
	CreateUser(ctx context.Context, user *models.User) error
}

func newUserCreateCmd() *cobra.Command {
	var username, email string

	cmd := &cobra.Command{
		Use:     "create",
		Short:   "Create a user",
		Example: `  insightdesk user create --username alice --email alice@example.com`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, _ *config.Config, st *store.PostgresStore) error {
				return runUserCreate(ctx, cmd.OutOrStdout(), st, username, email)
			})
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Unique username (required)")
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.MarkFlagRequired("username")

	return cmd
}

func runUserCreate(ctx context.Context, w io.Writer, st userCreator, username, email string) error {
	u := &models.User{Username: username, Email: email}
	if err := st.CreateUser(ctx, u); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	fmt.Fprintf(w, "Created user %q with id %d\n", u.Username, u.ID)
	return nil
}
