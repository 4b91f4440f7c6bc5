package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/meetwire/meetwire-go/auth"
	"github.com/meetwire/meetwire-go/credentials"
)

func newTokenCmd() *cobra.Command {
	var (
		clientID     string
		clientSecret string
		redirectURI  string
		scopes       []string
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage OAuth tokens",
		Long: `Manage OAuth tokens against the Meetwire authorization server.

Credentials come from flags or from the environment:
  --client-id     OR MEETWIRE_CLIENT_ID
  --client-secret OR MEETWIRE_CLIENT_SECRET`,
	}

	cmd.PersistentFlags().StringVar(&clientID, "client-id", "", "OAuth client id. Can also use MEETWIRE_CLIENT_ID env var.")
	cmd.PersistentFlags().StringVar(&clientSecret, "client-secret", "", "OAuth client secret. Can also use MEETWIRE_CLIENT_SECRET env var.")
	cmd.PersistentFlags().StringVar(&redirectURI, "redirect-uri", "", "OAuth redirect URI (for authorize and exchange)")
	cmd.PersistentFlags().StringSliceVar(&scopes, "scopes", nil, "Requested scopes (comma-separated)")

	newSession := func() (*auth.Session, error) {
		if clientID == "" {
			clientID = os.Getenv("MEETWIRE_CLIENT_ID")
		}
		if clientSecret == "" {
			clientSecret = os.Getenv("MEETWIRE_CLIENT_SECRET")
		}
		if clientID == "" || clientSecret == "" {
			return nil, fmt.Errorf("client credentials are required: set --client-id/--client-secret or MEETWIRE_CLIENT_ID/MEETWIRE_CLIENT_SECRET")
		}
		return auth.NewSession(&credentials.OAuthIdentity{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURI:  redirectURI,
			Scopes:       scopes,
		}), nil
	}

	cmd.AddCommand(newTokenAuthorizeCmd(newSession))
	cmd.AddCommand(newTokenExchangeCmd(newSession))
	cmd.AddCommand(newTokenRefreshCmd(newSession))
	cmd.AddCommand(newTokenClientCredentialsCmd(newSession, &scopes))
	cmd.AddCommand(newTokenIntrospectCmd(newSession))
	cmd.AddCommand(newTokenRevokeCmd(newSession))

	return cmd
}

type sessionFactory func() (*auth.Session, error)

func newTokenAuthorizeCmd(newSession sessionFactory) *cobra.Command {
	var state string

	cmd := &cobra.Command{
		Use:   "authorize",
		Short: "Print the authorization URL to start the OAuth flow",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := newSession()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), s.AuthorizationURL(state, ""))
			return nil
		},
	}

	cmd.Flags().StringVar(&state, "state", "", "CSRF state parameter (generated when empty)")
	return cmd
}

func newTokenExchangeCmd(newSession sessionFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "exchange <code>",
		Short: "Exchange an authorization code for tokens",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession()
			if err != nil {
				return err
			}
			ts, err := s.ExchangeCode(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printTokenSet(cmd, ts)
		},
	}
}

func newTokenRefreshCmd(newSession sessionFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh <refresh-token>",
		Short: "Refresh an access token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession()
			if err != nil {
				return err
			}
			ts, err := s.Refresh(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printTokenSet(cmd, ts)
		},
	}
}

func newTokenClientCredentialsCmd(newSession sessionFactory, scopes *[]string) *cobra.Command {
	return &cobra.Command{
		Use:   "client-credentials",
		Short: "Obtain an app-level token via the client credentials grant",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := newSession()
			if err != nil {
				return err
			}
			ts, err := s.ClientCredentials(cmd.Context(), *scopes)
			if err != nil {
				return err
			}
			return printTokenSet(cmd, ts)
		},
	}
}

func newTokenIntrospectCmd(newSession sessionFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "introspect <token>",
		Short: "Introspect a token at the authorization server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession()
			if err != nil {
				return err
			}
			meta, err := s.Introspect(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, meta)
		},
	}
}

func newTokenRevokeCmd(newSession sessionFactory) *cobra.Command {
	var hint string

	cmd := &cobra.Command{
		Use:   "revoke <token>",
		Short: "Revoke a token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession()
			if err != nil {
				return err
			}
			if err := s.Revoke(cmd.Context(), args[0], hint); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "token revoked")
			return nil
		},
	}

	cmd.Flags().StringVar(&hint, "hint", "", "Token type hint: access_token or refresh_token")
	return cmd
}

func printTokenSet(cmd *cobra.Command, ts *auth.TokenSet) error {
	out := map[string]any{
		"access_token": ts.AccessToken,
		"expires_at":   ts.ExpiresAt,
	}
	if ts.RefreshToken != "" {
		out["refresh_token"] = ts.RefreshToken
	}
	if len(ts.Scopes) > 0 {
		out["scope"] = strings.Join(ts.Scopes, " ")
	}
	return printJSON(cmd, out)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
