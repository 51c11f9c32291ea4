package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/dig"

	"github.com/mikey/email-assistant/internal/di"
)

// version is set at build time via -ldflags.
var version = "dev"

type rootFlags struct {
	configFile  string
	verbose     bool
	jsonLog     bool
	dryRun      bool
	provider    string
	llmProvider string
}

func (f *rootFlags) options() di.Options {
	return di.Options{
		ConfigFile:  f.configFile,
		Verbose:     f.verbose,
		JSONLog:     f.jsonLog,
		DryRun:      f.dryRun,
		Provider:    f.provider,
		LLMProvider: f.llmProvider,
	}
}

// invoke builds a container for one command and runs fn with its
// dependencies. Everything the container opened is released afterwards.
func (f *rootFlags) invoke(cmd *cobra.Command, fn interface{}) error {
	container, err := di.BuildContainer(f.options())
	if err != nil {
		return err
	}
	defer func() {
		if err := di.Close(container); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
		}
	}()
	if err := container.Invoke(fn); err != nil {
		return dig.RootCause(err)
	}
	return nil
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:   "email-assistant",
		Short: "Rule-first email classification with an AI second opinion",
		Long: "email-assistant labels, files and flags inbox mail using your own rules\n" +
			"plus a reasoning model, and learns from the corrections you make by hand.",
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		Version: version,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configFile, "config", "c", "", "Path to config file")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "Enable debug logging")
	pf.BoolVar(&flags.jsonLog, "json-log", false, "Output logs in JSON format")
	pf.BoolVar(&flags.dryRun, "dry-run", false, "Compute decisions without changing the mailbox or the profile")
	pf.StringVar(&flags.provider, "provider", "", "Mailbox provider (imap, gmail)")
	pf.StringVar(&flags.llmProvider, "llm", "", "Reasoning service (openai, gemini, bedrock, command)")

	root.AddCommand(newScanCmd(flags))
	root.AddCommand(newLearnCmd(flags))
	for _, c := range newActionCmds(flags) {
		root.AddCommand(c)
	}
	root.AddCommand(newLabelsCmd(flags))
	root.AddCommand(newProfileCmd(flags))
	root.AddCommand(newRulesCmd(flags))
	root.AddCommand(newClassifyCmd(flags))
	root.AddCommand(newAuthCmd(flags))
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
