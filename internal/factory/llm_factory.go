package factory

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/mikey/email-assistant/internal/adapters/bedrock"
	"github.com/mikey/email-assistant/internal/adapters/command"
	"github.com/mikey/email-assistant/internal/adapters/gemini"
	"github.com/mikey/email-assistant/internal/adapters/openai"
	"github.com/mikey/email-assistant/internal/config"
	"github.com/mikey/email-assistant/internal/core"
	"github.com/mikey/email-assistant/internal/credential"
	"go.uber.org/zap"
)

// LLMFactory creates reasoning clients
type LLMFactory struct {
	cfg     *config.Config
	secrets *credential.Store
	closers *Closers
	logger  *zap.Logger
}

// NewLLMFactory creates a new LLM factory. secrets may be nil.
func NewLLMFactory(cfg *config.Config, secrets *credential.Store, closers *Closers, logger *zap.Logger) *LLMFactory {
	return &LLMFactory{
		cfg:     cfg,
		secrets: secrets,
		closers: closers,
		logger:  logger,
	}
}

// CreateLLMClient creates a reasoning client based on the configuration
func (f *LLMFactory) CreateLLMClient() (core.ReasoningClient, error) {
	llmConfig := f.cfg.GetLLM()

	switch llmConfig.Provider {
	case "bedrock":
		return f.createBedrock()
	case "gemini":
		return f.createGemini()
	case "openai":
		return f.createOpenAI()
	case "command":
		cmdCfg := f.cfg.GetCommand()
		return command.NewCommandClient(cmdCfg.Path, cmdCfg.Args, f.logger), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", llmConfig.Provider)
	}
}

func (f *LLMFactory) createBedrock() (core.ReasoningClient, error) {
	bedrockCfg := f.cfg.GetBedrock()

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(bedrockCfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	return bedrock.NewBedrockClient(
		bedrockruntime.NewFromConfig(awsCfg),
		bedrockCfg.ModelID,
		bedrockCfg.MaxTokens,
		bedrockCfg.Temperature,
		bedrockCfg.TopP,
		f.logger,
	), nil
}

func (f *LLMFactory) createGemini() (core.ReasoningClient, error) {
	geminiCfg := f.cfg.GetGemini()
	apiKey, err := f.secrets.Resolve(geminiCfg.APIKey, credential.KeyGemini)
	if err != nil {
		return nil, err
	}
	if apiKey == "" {
		return nil, fmt.Errorf("no Gemini API key configured")
	}

	client, err := gemini.NewGeminiClient(
		context.Background(),
		apiKey,
		geminiCfg.ModelName,
		geminiCfg.MaxTokens,
		geminiCfg.Temperature,
		geminiCfg.TopP,
		f.logger,
	)
	if err != nil {
		return nil, err
	}
	f.closers.Add(client.Close)
	return client, nil
}

func (f *LLMFactory) createOpenAI() (core.ReasoningClient, error) {
	openaiCfg := f.cfg.GetOpenAI()
	apiKey, err := f.secrets.Resolve(openaiCfg.APIKey, credential.KeyOpenAI)
	if err != nil {
		return nil, err
	}
	// Local OpenAI-compatible servers do not need a key.
	if apiKey == "" && openaiCfg.BaseURL == "" {
		return nil, fmt.Errorf("no OpenAI API key configured")
	}

	return openai.NewOpenAIClient(
		apiKey,
		openaiCfg.BaseURL,
		openaiCfg.ModelName,
		openaiCfg.MaxTokens,
		openaiCfg.Temperature,
		openaiCfg.TopP,
		f.logger,
	), nil
}
