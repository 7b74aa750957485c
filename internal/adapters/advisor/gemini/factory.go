package gemini

import (
	"go.uber.org/zap"

	"github.com/AureliusCaelum/mail-analyzer/internal/config"
	"github.com/AureliusCaelum/mail-analyzer/internal/core"
	"github.com/AureliusCaelum/mail-analyzer/internal/utils"
)

// Factory creates new instances of the Gemini advisory client
type Factory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewFactory creates a new factory for Gemini advisory clients
func NewFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *Factory {
	return &Factory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateAdvisor creates a new Gemini advisory client
func (f *Factory) CreateAdvisor() (core.Advisor, error) {
	geminiCfg := f.cfg.GetGemini()

	return NewClient(
		geminiCfg.APIKey,
		geminiCfg.ModelName,
		geminiCfg.MaxTokens,
		geminiCfg.Temperature,
		geminiCfg.TopP,
		geminiCfg.MaxBodySize,
		f.logger,
		f.textProcessor,
	)
}
