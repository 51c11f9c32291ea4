package factory

import (
	"fmt"

	"github.com/mikey/email-assistant/internal/adapters/store"
	"github.com/mikey/email-assistant/internal/config"
	"github.com/mikey/email-assistant/internal/core"
	"go.uber.org/zap"
)

// StoreFactory creates decision stores based on configuration
type StoreFactory struct {
	cfg     *config.Config
	closers *Closers
	logger  *zap.Logger
}

// NewStoreFactory creates a new store factory
func NewStoreFactory(cfg *config.Config, closers *Closers, logger *zap.Logger) *StoreFactory {
	return &StoreFactory{
		cfg:     cfg,
		closers: closers,
		logger:  logger,
	}
}

// CreateDecisionStore creates a decision store based on the configuration
func (f *StoreFactory) CreateDecisionStore() (core.DecisionStore, error) {
	storeCfg := f.cfg.GetStore()

	switch storeCfg.Type {
	case "memory":
		s := store.NewMemoryStore(f.logger, storeCfg.CleanupFrequency)
		f.closers.Add(func() error { s.Stop(); return nil })
		return s, nil
	case "sqlite":
		s, err := store.NewSQLiteStore(storeCfg.SQLitePath, f.logger, storeCfg.CleanupFrequency)
		if err != nil {
			return nil, err
		}
		f.closers.Add(func() error { s.Stop(); return nil })
		return s, nil
	case "mysql":
		s, err := store.NewMySQLStore(storeCfg.MySQLDSN, f.logger, storeCfg.CleanupFrequency)
		if err != nil {
			return nil, err
		}
		f.closers.Add(func() error { s.Stop(); return nil })
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported store type: %s", storeCfg.Type)
	}
}
