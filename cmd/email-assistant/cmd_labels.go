package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mikey/email-assistant/internal/core"
)

func newLabelsCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "labels",
		Short: "List mailbox labels and mark the ones the assistant created",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return flags.invoke(cmd, func(svc *core.AssistantService) error {
				infos, err := svc.Labels(cmd.Context())
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintf(w, "Label\tMessages\tOrigin\n")
				fmt.Fprintf(w, "-----\t--------\t------\n")
				for _, info := range infos {
					fmt.Fprintf(w, "%s\t%d\t%s\n", info.Name, info.Messages, labelOrigin(info))
				}
				return w.Flush()
			})
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "cleanup",
		Short: "Delete assistant-created labels that no email carries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return flags.invoke(cmd, func(svc *core.AssistantService) error {
				removed, err := svc.CleanupLabels(cmd.Context())
				out := cmd.OutOrStdout()
				verb := "Removed"
				if flags.dryRun {
					verb = "Would remove"
				}
				for _, name := range removed {
					fmt.Fprintf(out, "%s %s\n", verb, name)
				}
				if err != nil {
					return err
				}
				if len(removed) == 0 {
					fmt.Fprintln(out, "No unused labels")
				}
				return nil
			})
		},
	})
	return cmd
}

func labelOrigin(info core.LabelInfo) string {
	switch {
	case info.System:
		return "system"
	case info.AICreated:
		return "assistant"
	default:
		return "user"
	}
}
