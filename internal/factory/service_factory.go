package factory

import (
	"github.com/mikey/email-assistant/internal/config"
	"github.com/mikey/email-assistant/internal/core"
	"github.com/mikey/email-assistant/internal/labels"
	"github.com/mikey/email-assistant/internal/profile"
	"github.com/mikey/email-assistant/internal/utils"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// CreateLabelFilter creates the label filter from the label settings
func CreateLabelFilter(cfg *config.Config, logger *zap.Logger) *labels.Filter {
	labelsCfg := cfg.GetLabels()
	return labels.NewFilter(labelsCfg.Ignore, labelsCfg.NeedsReply, logger)
}

// CreateProfileStore creates the file-backed profile store
func CreateProfileStore(cfg *config.Config, logger *zap.Logger) (*profile.FileStore, error) {
	return profile.NewFileStore(afero.NewOsFs(), cfg.GetProfile(), logger)
}

// CreateTextProcessor creates a new TextProcessor
func CreateTextProcessor(logger *zap.Logger) *utils.TextProcessor {
	return utils.NewTextProcessor(logger)
}

// CreateJudge creates the classification judge
func CreateJudge(cfg *config.Config, client core.ReasoningClient, text *utils.TextProcessor, filter *labels.Filter, logger *zap.Logger) *core.Judge {
	llmCfg := cfg.GetLLM()
	return core.NewJudge(client, text, filter, llmCfg.Timeout, llmCfg.MaxBodySize, logger)
}

// CreateLearner creates the profile learner
func CreateLearner(cfg *config.Config, client core.ReasoningClient, profiles *profile.FileStore, filter *labels.Filter, logger *zap.Logger) *core.Learner {
	return core.NewLearner(client, profiles, filter, cfg.GetLLM().LearnTimeout, logger)
}

// CreateAssistantService creates the assistant service
func CreateAssistantService(
	cfg *config.Config,
	profiles *profile.FileStore,
	provider core.Provider,
	store core.DecisionStore,
	judge *core.Judge,
	learner *core.Learner,
	notifier core.SummaryNotifier,
	filter *labels.Filter,
	logger *zap.Logger,
) *core.AssistantService {
	classifyCfg := cfg.GetClassify()
	return core.NewAssistantService(profiles, provider, store, judge, learner, notifier, filter,
		core.ServiceOptions{
			Concurrency: classifyCfg.Concurrency,
			DryRun:      classifyCfg.DryRun,
			Retention:   cfg.GetStore().Retention,
		}, logger)
}
