package factory

import (
	"github.com/mikey/email-assistant/internal/adapters/notify"
	"github.com/mikey/email-assistant/internal/config"
	"github.com/mikey/email-assistant/internal/core"
	"github.com/mikey/email-assistant/internal/credential"
	"go.uber.org/zap"
)

// CreateNotifier returns the summary notifier, or nil when notifications are
// disabled
func CreateNotifier(cfg *config.Config, secrets *credential.Store, logger *zap.Logger) (core.SummaryNotifier, error) {
	notifyCfg := cfg.GetNotify()
	if !notifyCfg.Enabled {
		return nil, nil
	}
	password, err := secrets.Resolve(notifyCfg.Password, credential.KeySMTPPassword)
	if err != nil {
		return nil, err
	}
	notifyCfg.Password = password
	logger.Info("Run summaries will be mailed",
		zap.String("smtp_address", notifyCfg.SMTPAddress),
		zap.Strings("to", notifyCfg.To))
	return notify.NewSMTPNotifier(notifyCfg, logger), nil
}
