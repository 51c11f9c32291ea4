package config

import (
	"os"
	"time"
)

// LLMConfig represents the configuration for the reasoning service
type LLMConfig struct {
	Provider     string
	Timeout      time.Duration
	LearnTimeout time.Duration
	MaxBodySize  int
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// CommandConfig represents the configuration for a local reasoning command
type CommandConfig struct {
	Path string
	Args []string
}

// ProfileConfig represents the location of the classification profile
type ProfileConfig struct {
	Path            string
	RulesDir        string
	DefaultRuleFile string
}

// ClassifyConfig represents the batch classification settings
type ClassifyConfig struct {
	Concurrency int
	ScanLimit   int
	DryRun      bool
}

// IMAPConfig represents the configuration for the IMAP provider
type IMAPConfig struct {
	Host           string
	Port           string
	Username       string
	Password       string
	TLS            bool
	Inbox          string
	ArchiveMailbox string
	JunkMailbox    string
	TrashMailbox   string
}

// GmailConfig represents the configuration for the Gmail provider
type GmailConfig struct {
	CredentialsFile string
	TokenFile       string
	User            string
}

// NotifyConfig represents the configuration for run summary mails
type NotifyConfig struct {
	Enabled     bool
	SMTPAddress string
	Username    string
	Password    string
	From        string
	To          []string
}

// StoreConfig represents the decision store configuration
type StoreConfig struct {
	Type             string
	Retention        time.Duration
	CleanupFrequency time.Duration
	SQLitePath       string
	MySQLDSN         string
}

// LabelsConfig represents how mailbox labels are interpreted
type LabelsConfig struct {
	Ignore     []string
	NeedsReply string
}

// GetLLM returns the reasoning service configuration
func (c *Config) GetLLM() LLMConfig {
	timeout, err := c.GetDuration("llm.timeout")
	if err != nil {
		timeout = 30 * time.Second
	}
	learnTimeout, err := c.GetDuration("llm.learn_timeout")
	if err != nil {
		learnTimeout = 90 * time.Second
	}
	return LLMConfig{
		Provider:     c.GetString("llm.provider"),
		Timeout:      timeout,
		LearnTimeout: learnTimeout,
		MaxBodySize:  c.GetInt("llm.max_body_size"),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		BaseURL:     c.GetString("openai.base_url"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
		TopP:        float32(c.GetFloat64("openai.top_p")),
	}
}

// GetCommand returns the local command configuration
func (c *Config) GetCommand() CommandConfig {
	return CommandConfig{
		Path: c.GetString("command.path"),
		Args: c.GetStringSlice("command.args"),
	}
}

// GetProfile returns the profile location
func (c *Config) GetProfile() ProfileConfig {
	return ProfileConfig{
		Path:            c.GetPath("profile.path"),
		RulesDir:        c.GetPath("profile.rules_dir"),
		DefaultRuleFile: c.GetString("profile.default_rule_file"),
	}
}

// GetClassify returns the classification settings
func (c *Config) GetClassify() ClassifyConfig {
	concurrency := c.GetInt("classify.concurrency")
	if concurrency <= 0 {
		concurrency = 1
	}
	return ClassifyConfig{
		Concurrency: concurrency,
		ScanLimit:   c.GetInt("classify.scan_limit"),
		DryRun:      c.GetBool("classify.dry_run"),
	}
}

// GetIMAP returns the IMAP provider configuration
func (c *Config) GetIMAP() IMAPConfig {
	return IMAPConfig{
		Host:           c.GetString("imap.host"),
		Port:           c.GetString("imap.port"),
		Username:       c.GetString("imap.username"),
		Password:       c.GetString("imap.password"),
		TLS:            c.GetBool("imap.tls"),
		Inbox:          c.GetString("imap.inbox"),
		ArchiveMailbox: c.GetString("imap.archive_mailbox"),
		JunkMailbox:    c.GetString("imap.junk_mailbox"),
		TrashMailbox:   c.GetString("imap.trash_mailbox"),
	}
}

// GetGmail returns the Gmail provider configuration
func (c *Config) GetGmail() GmailConfig {
	return GmailConfig{
		CredentialsFile: c.GetPath("gmail.credentials_file"),
		TokenFile:       c.GetPath("gmail.token_file"),
		User:            c.GetString("gmail.user"),
	}
}

// GetNotify returns the notification configuration
func (c *Config) GetNotify() NotifyConfig {
	return NotifyConfig{
		Enabled:     c.GetBool("notify.enabled"),
		SMTPAddress: c.GetString("notify.smtp_address"),
		Username:    c.GetString("notify.username"),
		Password:    c.GetString("notify.password"),
		From:        c.GetString("notify.from"),
		To:          c.GetStringSlice("notify.to"),
	}
}

// GetStore returns the decision store configuration
func (c *Config) GetStore() StoreConfig {
	retention, err := c.GetDuration("store.retention")
	if err != nil {
		retention = 30 * 24 * time.Hour
	}
	frequency, err := c.GetDuration("store.cleanup_frequency")
	if err != nil {
		frequency = time.Hour
	}
	return StoreConfig{
		Type:             c.GetString("store.type"),
		Retention:        retention,
		CleanupFrequency: frequency,
		SQLitePath:       c.GetPath("store.sqlite_path"),
		MySQLDSN:         c.GetString("store.mysql_dsn"),
	}
}

// GetLabels returns the label settings
func (c *Config) GetLabels() LabelsConfig {
	return LabelsConfig{
		Ignore:     c.GetStringSlice("labels.ignore"),
		NeedsReply: c.GetString("labels.needs_reply"),
	}
}

func expandPath(p string) string {
	return os.ExpandEnv(p)
}
