package main

import (
	"bufio"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/mikey/email-assistant/internal/adapters/gmail"
	"github.com/mikey/email-assistant/internal/config"
	"github.com/mikey/email-assistant/internal/credential"
)

var secretKeys = []string{
	credential.KeyOpenAI,
	credential.KeyGemini,
	credential.KeyIMAPPassword,
	credential.KeySMTPPassword,
}

func newAuthCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage mailbox logins and stored secrets",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "gmail",
		Short: "Authorize access to a Gmail account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return flags.invoke(cmd, func(cfg *config.Config) error {
				gmailCfg := cfg.GetGmail()
				oauthCfg, err := gmail.OAuthConfig(gmailCfg.CredentialsFile)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Open this URL in a browser and authorize access:\n\n%s\n\nPaste the authorization code: ",
					oauthCfg.AuthCodeURL("email-assistant", oauth2.AccessTypeOffline))
				code, err := readLine(cmd)
				if err != nil {
					return err
				}
				tok, err := oauthCfg.Exchange(cmd.Context(), code)
				if err != nil {
					return fmt.Errorf("failed to exchange authorization code: %w", err)
				}
				if err := gmail.SaveToken(gmailCfg.TokenFile, tok); err != nil {
					return err
				}
				fmt.Fprintf(out, "Saved Gmail token to %s\n", gmailCfg.TokenFile)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:       "set <key>",
		Short:     "Store a secret in the system keyring, read from stdin",
		Long:      "Store a secret in the system keyring. Keys: " + strings.Join(secretKeys, ", "),
		Args:      cobra.ExactArgs(1),
		ValidArgs: secretKeys,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(secretKeys, args[0]) {
				return fmt.Errorf("unknown secret %q, expected one of %s", args[0], strings.Join(secretKeys, ", "))
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Enter %s: ", args[0])
			value, err := readLine(cmd)
			if err != nil {
				return err
			}
			if value == "" {
				return fmt.Errorf("empty secret")
			}
			if err := credential.Open().Set(args[0], value); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored %s\n", args[0])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:       "delete <key>",
		Short:     "Remove a secret from the system keyring",
		Args:      cobra.ExactArgs(1),
		ValidArgs: secretKeys,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := credential.Open().Delete(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	})
	return cmd
}

func readLine(cmd *cobra.Command) (string, error) {
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
