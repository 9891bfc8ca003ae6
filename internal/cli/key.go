package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kiranshivaraju/insightdesk/internal/apikey"
	"github.com/kiranshivaraju/insightdesk/internal/config"
	"github.com/kiranshivaraju/insightdesk/internal/store"
	"github.com/kiranshivaraju/insightdesk/pkg/models"
)

// keyManager is the subset of apikey.Repository used by the key commands.
type keyManager interface {
	Create(ctx context.Context, p apikey.CreateParams) (*apikey.Issued, error)
	Revoke(ctx context.Context, publicID string, ownerUserID int64, tenantID string) (bool, error)
	List(ctx context.Context, ownerUserID int64, tenantID string) ([]*models.APIKey, error)
	ListActive(ctx context.Context, ownerUserID int64, tenantID string) ([]*models.APIKey, error)
}

func newKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "key",
		Aliases: []string{"apikey"},
		Short:   "Manage API keys",
		Long:    "Create, list, and revoke API keys owned by a user within a tenant.",
	}

	cmd.AddCommand(newKeyCreateCmd())
	cmd.AddCommand(newKeyListCmd())
	cmd.AddCommand(newKeyRevokeCmd())

	return cmd
}

// withKeys opens the store and builds a repository from the loaded config.
func withKeys(ctx context.Context, fn func(ctx context.Context, keys keyManager) error) error {
	return withStore(ctx, func(ctx context.Context, cfg *config.Config, st *store.PostgresStore) error {
		keys := apikey.NewRepository(st, cfg.APIKey.HMACSecret,
			apikey.WithSecretSize(cfg.APIKey.SecretSize))
		return fn(ctx, keys)
	})
}

// ---------- key create ----------

type keyCreateOptions struct {
	userID    int64
	tenantID  string
	scopes    []string
	name      string
	expiresIn time.Duration
	metadata  string
}

func newKeyCreateCmd() *cobra.Command {
	var opts keyCreateOptions

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new API key",
		Long:  "Generate a new API key for a user in a tenant. The raw key is shown once and cannot be retrieved again.",
		Example: `  insightdesk key create --user 42 --tenant acme --scopes read,write --name "CI pipeline"
  insightdesk key create --user 42 --tenant acme --scopes read --expires-in 720h --metadata '{"team":"ops"}'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withKeys(cmd.Context(), func(ctx context.Context, keys keyManager) error {
				return runKeyCreate(ctx, cmd.OutOrStdout(), keys, opts)
			})
		},
	}

	cmd.Flags().Int64Var(&opts.userID, "user", 0, "Owner user id (required)")
	cmd.Flags().StringVar(&opts.tenantID, "tenant", "", "Tenant id (required)")
	cmd.Flags().StringSliceVar(&opts.scopes, "scopes", nil, "Comma separated scopes")
	cmd.Flags().StringVar(&opts.name, "name", "", "Human-readable name for the key")
	cmd.Flags().DurationVar(&opts.expiresIn, "expires-in", 0, "Key lifetime, e.g. 720h (default: never expires)")
	cmd.Flags().StringVar(&opts.metadata, "metadata", "", "JSON object stored with the key")
	cmd.MarkFlagRequired("user")
	cmd.MarkFlagRequired("tenant")

	return cmd
}

func runKeyCreate(ctx context.Context, w io.Writer, keys keyManager, opts keyCreateOptions) error {
	if opts.userID <= 0 {
		return errors.New("--user must be a positive user id")
	}
	if strings.TrimSpace(opts.tenantID) == "" {
		return errors.New("--tenant is required")
	}
	if opts.expiresIn < 0 {
		return errors.New("--expires-in must not be negative")
	}
	if opts.metadata != "" {
		var obj map[string]any
		if err := json.Unmarshal([]byte(opts.metadata), &obj); err != nil {
			return fmt.Errorf("--metadata must be a JSON object: %w", err)
		}
	}

	params := apikey.CreateParams{
		OwnerUserID:  opts.userID,
		TenantID:     opts.tenantID,
		Scopes:       opts.scopes,
		Name:         opts.name,
		MetadataJSON: opts.metadata,
	}
	if opts.expiresIn > 0 {
		params.Lifetime = &opts.expiresIn
	}

	issued, err := keys.Create(ctx, params)
	if err != nil {
		return err
	}

	fmt.Fprintln(w, "API Key created:")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Key:       %s\n", issued.Token)
	fmt.Fprintf(w, "  Public ID: %s\n", issued.Key.PublicID)
	fmt.Fprintf(w, "  Tenant:    %s\n", issued.Key.TenantID)
	fmt.Fprintf(w, "  Scopes:    %s\n", strings.Join(issued.Key.ScopeList(), ","))
	if issued.Key.ExpiresUTC != nil {
		fmt.Fprintf(w, "  Expires:   %s\n", issued.Key.ExpiresUTC.Format(time.RFC3339))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  Save this key now - it cannot be retrieved again.")
	return nil
}

// ---------- key list ----------

type keyListOptions struct {
	userID     int64
	tenantID   string
	all        bool
	jsonOutput bool
}

func newKeyListCmd() *cobra.Command {
	var opts keyListOptions

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List a user's API keys in a tenant",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withKeys(cmd.Context(), func(ctx context.Context, keys keyManager) error {
				return runKeyList(ctx, cmd.OutOrStdout(), keys, opts)
			})
		},
	}

	cmd.Flags().Int64Var(&opts.userID, "user", 0, "Owner user id (required)")
	cmd.Flags().StringVar(&opts.tenantID, "tenant", "", "Tenant id (required)")
	cmd.Flags().BoolVar(&opts.all, "all", false, "Include revoked and expired keys")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output as JSON")
	cmd.MarkFlagRequired("user")
	cmd.MarkFlagRequired("tenant")

	return cmd
}

func runKeyList(ctx context.Context, w io.Writer, keys keyManager, opts keyListOptions) error {
	list := keys.ListActive
	if opts.all {
		list = keys.List
	}
	rows, err := list(ctx, opts.userID, opts.tenantID)
	if err != nil {
		return fmt.Errorf("list api keys: %w", err)
	}

	now := time.Now()
	if opts.jsonOutput {
		out := make([]keyRow, 0, len(rows))
		for _, k := range rows {
			out = append(out, newKeyRow(k, now))
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	if len(rows) == 0 {
		fmt.Fprintln(w, "No API keys found. Use 'insightdesk key create' to create one.")
		return nil
	}

	fmt.Fprintf(w, "%-18s %-20s %-24s %-8s %-20s\n", "PUBLIC ID", "NAME", "SCOPES", "STATUS", "LAST USED")
	fmt.Fprintf(w, "%-18s %-20s %-24s %-8s %-20s\n", "---------", "----", "------", "------", "---------")
	for _, k := range rows {
		lastUsed := "never"
		if k.LastUsedUTC != nil {
			lastUsed = k.LastUsedUTC.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%-18s %-20s %-24s %-8s %-20s\n",
			k.PublicID, k.Name, k.ScopesCSV, keyStatus(k, now), lastUsed)
	}
	return nil
}

// keyRow is the JSON form of a key for key list --json.
type keyRow struct {
	PublicID    string          `json:"public_id"`
	Name        string          `json:"name"`
	TenantID    string          `json:"tenant_id"`
	Scopes      []string        `json:"scopes"`
	Status      string          `json:"status"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	CreatedUTC  time.Time       `json:"created_utc"`
	ExpiresUTC  *time.Time      `json:"expires_utc,omitempty"`
	RevokedUTC  *time.Time      `json:"revoked_utc,omitempty"`
	LastUsedUTC *time.Time      `json:"last_used_utc,omitempty"`
}

func newKeyRow(k *models.APIKey, now time.Time) keyRow {
	row := keyRow{
		PublicID:    k.PublicID,
		Name:        k.Name,
		TenantID:    k.TenantID,
		Scopes:      k.ScopeList(),
		Status:      keyStatus(k, now),
		CreatedUTC:  k.CreatedUTC,
		ExpiresUTC:  k.ExpiresUTC,
		RevokedUTC:  k.RevokedUTC,
		LastUsedUTC: k.LastUsedUTC,
	}
	if k.MetadataJSON != "" {
		row.Metadata = json.RawMessage(k.MetadataJSON)
	}
	return row
}

func keyStatus(k *models.APIKey, now time.Time) string {
	switch {
	case k.IsRevoked():
		return "revoked"
	case !k.IsActive(now):
		return "expired"
	default:
		return "active"
	}
}

// ---------- key revoke ----------

func newKeyRevokeCmd() *cobra.Command {
	var (
		userID   int64
		tenantID string
	)

	cmd := &cobra.Command{
		Use:   "revoke <public-id>",
		Short: "Revoke an API key by its public id",
		Long:  "Revoke an API key, preventing any further authenticated requests or token exchanges using that key.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withKeys(cmd.Context(), func(ctx context.Context, keys keyManager) error {
				return runKeyRevoke(ctx, cmd.OutOrStdout(), keys, args[0], userID, tenantID)
			})
		},
	}

	cmd.Flags().Int64Var(&userID, "user", 0, "Owner user id (required)")
	cmd.Flags().StringVar(&tenantID, "tenant", "", "Tenant id (required)")
	cmd.MarkFlagRequired("user")
	cmd.MarkFlagRequired("tenant")

	return cmd
}

func runKeyRevoke(ctx context.Context, w io.Writer, keys keyManager, publicID string, userID int64, tenantID string) error {
	revoked, err := keys.Revoke(ctx, publicID, userID, tenantID)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if !revoked {
		return fmt.Errorf("no active API key %q for user %d in tenant %q", publicID, userID, tenantID)
	}
	fmt.Fprintf(w, "Revoked API key %q\n", publicID)
	return nil
}
