package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kiranshivaraju/insightdesk/internal/oauth"
)

func newClientCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Manage OAuth clients of the token endpoint",
	}
	cmd.AddCommand(newClientHashSecretCmd())
	return cmd
}

func newClientHashSecretCmd() *cobra.Command {
	var clientID string

	cmd := &cobra.Command{
		Use:   "hash-secret",
		Short: "Hash a client secret for OAUTH_CLIENTS",
		Long:  "Reads a client secret from stdin and prints the OAUTH_CLIENTS entry for it.",
		Example: `  echo -n "s3cret" | insightdesk client hash-secret --client-id reporting`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClientHashSecret(cmd.InOrStdin(), cmd.OutOrStdout(), clientID)
		},
	}

	cmd.Flags().StringVar(&clientID, "client-id", "", "Client id (required)")
	cmd.MarkFlagRequired("client-id")

	return cmd
}

func runClientHashSecret(r io.Reader, w io.Writer, clientID string) error {
	if strings.ContainsAny(clientID, ":,") {
		return errors.New("client id must not contain ':' or ','")
	}
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read secret: %w", err)
	}
	secret := strings.TrimRight(line, "\r\n")
	if secret == "" {
		return errors.New("client secret is empty")
	}

	hash, err := oauth.HashSecret(secret)
	if err != nil {
		return fmt.Errorf("hash secret: %w", err)
	}
	fmt.Fprintf(w, "%s:%s\n", clientID, hash)
	return nil
}
