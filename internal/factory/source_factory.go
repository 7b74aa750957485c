package factory

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/AureliusCaelum/mail-analyzer/internal/adapters/source"
	"github.com/AureliusCaelum/mail-analyzer/internal/config"
	"github.com/AureliusCaelum/mail-analyzer/internal/core"
)

// SourceFactory creates message sources based on configuration
type SourceFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewSourceFactory creates a new source factory
func NewSourceFactory(cfg *config.Config, logger *zap.Logger) *SourceFactory {
	return &SourceFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateMessageSource creates a message source based on the configuration
func (f *SourceFactory) CreateMessageSource() (core.MessageSource, error) {
	sourceType := f.cfg.GetString("source.type")

	switch sourceType {
	case "imap":
		return source.NewIMAPSource(f.cfg.GetIMAP(), f.logger), nil
	case "smtp":
		return source.NewSMTPSource(f.cfg.GetSMTP(), f.logger), nil
	case "eml":
		return source.NewEMLSource(f.cfg.GetString("source.eml_dir"), f.logger), nil
	default:
		return nil, fmt.Errorf("unsupported source type: %s", sourceType)
	}
}
