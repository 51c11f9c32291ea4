package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mikey/email-assistant/internal/core"
	"github.com/mikey/email-assistant/internal/profile"
)

func newProfileCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "profile",
		Short: "Print the classification guidance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return flags.invoke(cmd, func(store *profile.FileStore) error {
				p, err := store.Load()
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), strings.TrimRight(p.Text, "\n")+"\n")
				return nil
			})
		},
	}
}

func newRulesCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "List the structured rules in evaluation order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return flags.invoke(cmd, func(store *profile.FileStore) error {
				p, err := store.Load()
				if err != nil && p == nil {
					return err
				}
				out := cmd.OutOrStdout()
				w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintf(w, "#\tName\tWhen\tThen\tFile\n")
				for i, r := range p.Rules {
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", i+1, r.Name, describeCondition(r.Condition), describeAction(r.Action), r.Source)
				}
				if err := w.Flush(); err != nil {
					return err
				}
				for _, warn := range p.Warnings {
					fmt.Fprintf(out, "warning: %v\n", warn)
				}
				return err
			})
		},
	}
}

// describeCondition renders a condition tree. And binds tighter than Or, as
// in the matcher.
func describeCondition(c core.Condition) string {
	s := fmt.Sprintf("%s %s %q", c.Field, c.Op, c.Value)
	if c.AndFlag != "" {
		s += fmt.Sprintf(" and %q", c.AndFlag)
	}
	if c.And != nil {
		s = fmt.Sprintf("(%s and %s)", s, describeCondition(*c.And))
	}
	if c.Or != nil {
		s = fmt.Sprintf("(%s or %s)", s, describeCondition(*c.Or))
	}
	return s
}

func describeAction(a core.Action) string {
	if a.Kind == core.ActionLabel {
		return "label " + a.Label
	}
	return string(a.Kind)
}
