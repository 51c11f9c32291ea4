package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/email-assistant/internal/config"
	"github.com/mikey/email-assistant/internal/core"
	"github.com/mikey/email-assistant/internal/credential"
	"github.com/mikey/email-assistant/internal/factory"
	"github.com/mikey/email-assistant/internal/logging"
)

// Options carries the command line settings that override the configuration
type Options struct {
	ConfigFile  string
	Verbose     bool
	JSONLog     bool
	DryRun      bool
	Provider    string
	LLMProvider string
}

func (o Options) apply(cfg *config.Config) {
	if o.Verbose {
		cfg.Set("logging.level", "debug")
	}
	if o.JSONLog {
		cfg.Set("logging.format", "json")
	}
	if o.DryRun {
		cfg.Set("classify.dry_run", true)
	}
	if o.Provider != "" {
		cfg.Set("provider.type", o.Provider)
	}
	if o.LLMProvider != "" {
		cfg.Set("llm.provider", o.LLMProvider)
	}
}

// BuildContainer creates and configures a dependency injection container.
// Components are constructed on first use, so commands that only touch the
// profile never open a mailbox or a model connection.
func BuildContainer(opts Options) (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(func() (*config.Config, error) {
		cfg, err := config.Load(opts.ConfigFile)
		if err != nil {
			return nil, err
		}
		opts.apply(cfg)
		return cfg, nil
	}); err != nil {
		return nil, err
	}

	// Register resource cleanup
	if err := container.Provide(factory.NewClosers); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(cfg *config.Config, closers *factory.Closers) (*zap.Logger, error) {
		logger, err := logging.InitLogger(cfg)
		if err != nil {
			return nil, err
		}
		closers.Add(func() error {
			// Sync fails on terminals; there is nothing to do about it.
			_ = logger.Sync()
			return nil
		})
		return logger, nil
	}); err != nil {
		return nil, err
	}

	// Register secrets
	if err := container.Provide(credential.Open); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewLLMFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewStoreFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewProviderFactory); err != nil {
		return nil, err
	}

	// Register reasoning client
	if err := container.Provide(func(f *factory.LLMFactory) (core.ReasoningClient, error) {
		return f.CreateLLMClient()
	}); err != nil {
		return nil, err
	}

	// Register decision store
	if err := container.Provide(func(f *factory.StoreFactory) (core.DecisionStore, error) {
		return f.CreateDecisionStore()
	}); err != nil {
		return nil, err
	}

	// Register mailbox provider
	if err := container.Provide(func(f *factory.ProviderFactory) (core.Provider, error) {
		return f.CreateProvider()
	}); err != nil {
		return nil, err
	}

	constructors := []interface{}{
		factory.CreateNotifier,
		factory.CreateLabelFilter,
		factory.CreateProfileStore,
		factory.CreateTextProcessor,
		factory.CreateJudge,
		factory.CreateLearner,
		factory.CreateAssistantService,
	}
	for _, c := range constructors {
		if err := container.Provide(c); err != nil {
			return nil, err
		}
	}

	return container, nil
}

// Close releases every resource the container opened
func Close(container *dig.Container) error {
	return container.Invoke(func(closers *factory.Closers) error {
		return closers.Close()
	})
}
