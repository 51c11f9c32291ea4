package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mikey/email-assistant/internal/core"
)

var actionVerbs = []struct {
	kind  core.UserActionKind
	short string
	done  string
}{
	{core.UserSpam, "Mark an email as spam and learn from it", "Marked %s as spam"},
	{core.UserUnspam, "Move an email out of spam and learn from it", "Moved %s out of spam"},
	{core.UserArchive, "Archive an email and learn from it", "Archived %s"},
	{core.UserDelete, "Delete an email and learn from it", "Deleted %s"},
}

func newActionCmds(flags *rootFlags) []*cobra.Command {
	var cmds []*cobra.Command
	for _, verb := range actionVerbs {
		verb := verb
		cmds = append(cmds, &cobra.Command{
			Use:   string(verb.kind) + " <email-id>",
			Short: verb.short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runUserAction(cmd, flags, args[0], core.UserAction{Kind: verb.kind}, fmt.Sprintf(verb.done, args[0]))
			},
		})
	}

	cmds = append(cmds, &cobra.Command{
		Use:   "label <email-id> <label>",
		Short: "Add a label to an email and learn from it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			action := core.UserAction{Kind: core.UserLabel, Label: args[1]}
			return runUserAction(cmd, flags, args[0], action, fmt.Sprintf("Labeled %s as %s", args[0], args[1]))
		},
	})
	return cmds
}

func runUserAction(cmd *cobra.Command, flags *rootFlags, id string, action core.UserAction, done string) error {
	return flags.invoke(cmd, func(svc *core.AssistantService) error {
		outcome, err := svc.ApplyUserAction(cmd.Context(), id, action)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if flags.dryRun {
			fmt.Fprintf(out, "%s (dry run)\n", done)
			return nil
		}
		fmt.Fprintln(out, done)
		printLearnOutcome(out, outcome)
		return nil
	})
}

func printLearnOutcome(out io.Writer, outcome *core.LearnOutcome) {
	if outcome.Changed {
		fmt.Fprintf(out, "Profile updated from %d correction(s)\n", len(outcome.Applied))
	}
	for _, r := range outcome.Reported {
		fmt.Fprintf(out, "review: %s\n", r)
	}
	for _, w := range outcome.Warnings {
		fmt.Fprintf(out, "warning: %v\n", w)
	}
}
