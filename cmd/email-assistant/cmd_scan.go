package main

import (
	"github.com/spf13/cobra"

	"github.com/mikey/email-assistant/internal/config"
	"github.com/mikey/email-assistant/internal/core"
)

func newScanCmd(flags *rootFlags) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Learn from your corrections, then classify inbox mail",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return flags.invoke(cmd, func(cfg *config.Config, svc *core.AssistantService) error {
				if !cmd.Flags().Changed("limit") {
					limit = cfg.GetClassify().ScanLimit
				}
				summary, err := svc.Scan(cmd.Context(), limit)
				if err != nil {
					return err
				}
				return summary.Render(cmd.OutOrStdout())
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of inbox emails to classify (default from classify.scan_limit)")
	return cmd
}

func newLearnCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "learn",
		Short: "Learn from your corrections without classifying new mail",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return flags.invoke(cmd, func(svc *core.AssistantService) error {
				summary, err := svc.Learn(cmd.Context())
				if err != nil {
					return err
				}
				return summary.Render(cmd.OutOrStdout())
			})
		},
	}
}
