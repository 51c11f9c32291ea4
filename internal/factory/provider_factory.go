package factory

import (
	"context"
	"fmt"

	"github.com/mikey/email-assistant/internal/adapters/gmail"
	"github.com/mikey/email-assistant/internal/adapters/imap"
	"github.com/mikey/email-assistant/internal/config"
	"github.com/mikey/email-assistant/internal/core"
	"github.com/mikey/email-assistant/internal/credential"
	"go.uber.org/zap"
)

// ProviderFactory creates mailbox providers based on configuration
type ProviderFactory struct {
	cfg     *config.Config
	secrets *credential.Store
	closers *Closers
	logger  *zap.Logger
}

// NewProviderFactory creates a new provider factory. secrets may be nil.
func NewProviderFactory(cfg *config.Config, secrets *credential.Store, closers *Closers, logger *zap.Logger) *ProviderFactory {
	return &ProviderFactory{
		cfg:     cfg,
		secrets: secrets,
		closers: closers,
		logger:  logger,
	}
}

// CreateProvider creates a provider based on the configuration
func (f *ProviderFactory) CreateProvider() (core.Provider, error) {
	providerType := f.cfg.GetString("provider.type")
	needsReply := f.cfg.GetLabels().NeedsReply

	switch providerType {
	case "imap":
		imapCfg := f.cfg.GetIMAP()
		if imapCfg.Host == "" {
			return nil, fmt.Errorf("imap.host is not configured")
		}
		password, err := f.secrets.Resolve(imapCfg.Password, credential.KeyIMAPPassword)
		if err != nil {
			return nil, err
		}
		p := imap.NewProvider(imapCfg, password, needsReply, f.logger)
		f.closers.Add(p.Close)
		return p, nil
	case "gmail":
		gmailCfg := f.cfg.GetGmail()
		svc, err := gmail.NewService(context.Background(), gmailCfg.CredentialsFile, gmailCfg.TokenFile)
		if err != nil {
			return nil, err
		}
		return gmail.NewProvider(svc, gmailCfg.User, needsReply, f.logger), nil
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", providerType)
	}
}
