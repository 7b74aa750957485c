package factory

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/AureliusCaelum/mail-analyzer/internal/adapters/store"
	"github.com/AureliusCaelum/mail-analyzer/internal/config"
	"github.com/AureliusCaelum/mail-analyzer/internal/core"
)

// StoreFactory creates model stores based on configuration
type StoreFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewStoreFactory creates a new store factory
func NewStoreFactory(cfg *config.Config, logger *zap.Logger) *StoreFactory {
	return &StoreFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateModelStore creates a model store based on the configuration
func (f *StoreFactory) CreateModelStore() (core.ModelStore, error) {
	storeType := f.cfg.GetString("store.type")

	switch storeType {
	case "memory":
		return store.NewMemoryStore(), nil
	case "file":
		return store.NewFileStore(f.cfg.GetString("store.dir"), f.logger)
	case "sqlite":
		sqlitePath := f.cfg.GetString("store.sqlite_path")
		if err := os.MkdirAll(filepath.Dir(sqlitePath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		return store.NewSQLiteStore(sqlitePath, f.logger)
	case "mysql":
		return store.NewMySQLStore(f.cfg.GetString("store.mysql_dsn"), f.logger)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", storeType)
	}
}
