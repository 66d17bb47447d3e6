package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ruletree/ruletree/internal/auth"
)

var (
	// tokenSubject is the sub claim of the issued token
	tokenSubject string
	// tokenRoles are the role claims of the issued token
	tokenRoles []string
)

// newTokenCmd creates the token command.
func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API bearer token",
		Long: `Issue a signed bearer token for the HTTP API.

The token is signed with auth.signing_key from the config and expires
after auth.token_ttl. Pass it as "Authorization: Bearer <token>".`,
		Args: cobra.NoArgs,
		Example: `  ruletree token --subject deploy-bot
  ruletree token --subject alice --role admin --role editor`,
		RunE: runToken,
	}

	cmd.Flags().StringVar(&tokenSubject, "subject", "", "token subject (required)")
	cmd.Flags().StringSliceVar(&tokenRoles, "role", nil, "role claim, repeatable")

	return cmd
}

func runToken(cmd *cobra.Command, args []string) error {
	if tokenSubject == "" {
		return errors.New("--subject is required")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.Auth.Enabled() {
		return errors.New("auth.signing_key is not configured")
	}

	v, err := auth.NewValidator(auth.Config{
		SigningKey: cfg.Auth.SigningKey,
		Issuer:     cfg.Auth.Issuer,
		TokenTTL:   cfg.Auth.TokenTTL.Std(),
	})
	if err != nil {
		return err
	}

	token, err := v.Issue(tokenSubject, tokenRoles...)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}

	if outputFormat == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]string{"token": token})
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
