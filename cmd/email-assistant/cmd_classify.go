package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mikey/email-assistant/internal/adapters/mailparse"
	"github.com/mikey/email-assistant/internal/core"
	"github.com/mikey/email-assistant/internal/labels"
	"github.com/mikey/email-assistant/internal/profile"
)

func newClassifyCmd(flags *rootFlags) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify a single RFC 5322 message without touching the mailbox",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var in io.Reader = cmd.InOrStdin()
			if file != "" && file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return fmt.Errorf("failed to open message: %w", err)
				}
				defer f.Close()
				in = f
			}
			email, err := mailparse.Parse(in)
			if err != nil {
				return err
			}
			if email.ID == "" {
				email.ID = "message"
			}
			email.Labels = append(email.Labels, "INBOX")

			return flags.invoke(cmd, func(
				profiles *profile.FileStore,
				judge *core.Judge,
				learner *core.Learner,
				filter *labels.Filter,
				logger *zap.Logger,
			) error {
				// Classification alone needs neither a mailbox nor a decision store.
				svc := core.NewAssistantService(profiles, nil, nil, judge, learner, nil, filter,
					core.ServiceOptions{Concurrency: 1, DryRun: true}, logger)
				decision, warnings, err := svc.Classify(cmd.Context(), email)
				if err != nil {
					return err
				}
				printDecision(cmd.OutOrStdout(), email, decision)
				for _, w := range warnings {
					fmt.Fprintf(cmd.OutOrStdout(), "warning: %v\n", w)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Message file (stdin if not specified)")
	return cmd
}

func printDecision(out io.Writer, email *core.Email, d *core.Decision) {
	action := string(d.Action)
	if d.Action == core.ActionNone {
		action = "keep in inbox"
	}
	fmt.Fprintf(out, "From:        %s\n", email.From)
	fmt.Fprintf(out, "Subject:     %s\n", email.Subject)
	fmt.Fprintf(out, "Labels:      %s\n", strings.Join(d.Labels, ", "))
	fmt.Fprintf(out, "Action:      %s\n", action)
	fmt.Fprintf(out, "Needs reply: %t\n", d.NeedsReply)
	fmt.Fprintf(out, "Source:      %s\n", d.Source)
	if len(d.MatchedRules) > 0 {
		fmt.Fprintf(out, "Rules:       %s\n", strings.Join(d.MatchedRules, ", "))
	}
	if d.Confidence != nil {
		fmt.Fprintf(out, "Confidence:  %.2f\n", *d.Confidence)
	}
}
