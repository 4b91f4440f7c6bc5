package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/meetwire/meetwire-go/webhook"
)

func newWebhookCmd() *cobra.Command {
	var secret string

	cmd := &cobra.Command{
		Use:   "webhook",
		Short: "Sign and verify webhook payloads",
		Long: `Sign and verify webhook payloads during integration development.

The signing secret comes from --secret or MEETWIRE_WEBHOOK_SECRET.
Payloads are read from a file argument, or from stdin when the argument
is "-" or omitted.`,
	}

	cmd.PersistentFlags().StringVar(&secret, "secret", "", "Webhook signing secret. Can also use MEETWIRE_WEBHOOK_SECRET env var.")

	resolveSecret := func() (string, error) {
		if secret == "" {
			secret = os.Getenv("MEETWIRE_WEBHOOK_SECRET")
		}
		if secret == "" {
			return "", fmt.Errorf("webhook secret is required: set --secret or MEETWIRE_WEBHOOK_SECRET")
		}
		return secret, nil
	}

	cmd.AddCommand(newWebhookSignCmd(resolveSecret))
	cmd.AddCommand(newWebhookVerifyCmd(resolveSecret))

	return cmd
}

func newWebhookSignCmd(resolveSecret func() (string, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "sign [payload-file]",
		Short: "Compute the signature header for a payload",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sec, err := resolveSecret()
			if err != nil {
				return err
			}
			payload, err := readPayload(cmd, args)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), webhook.Sign(sec, payload))
			return nil
		},
	}
}

func newWebhookVerifyCmd(resolveSecret func() (string, error)) *cobra.Command {
	var signature string

	cmd := &cobra.Command{
		Use:   "verify [payload-file]",
		Short: "Verify a payload against its signature header",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sec, err := resolveSecret()
			if err != nil {
				return err
			}
			payload, err := readPayload(cmd, args)
			if err != nil {
				return err
			}
			if result := webhook.Verify(sec, payload, signature); !result.Valid {
				return fmt.Errorf("verification failed: %w", result.Err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "signature valid")
			return nil
		},
	}

	cmd.Flags().StringVar(&signature, "signature", "", "Signature header value (sha256=<hex>)")
	_ = cmd.MarkFlagRequired("signature")
	return cmd
}

func readPayload(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(args[0])
}
