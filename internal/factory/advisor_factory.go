package factory

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/AureliusCaelum/mail-analyzer/internal/adapters/advisor/bedrock"
	"github.com/AureliusCaelum/mail-analyzer/internal/adapters/advisor/gemini"
	"github.com/AureliusCaelum/mail-analyzer/internal/adapters/advisor/openai"
	"github.com/AureliusCaelum/mail-analyzer/internal/config"
	"github.com/AureliusCaelum/mail-analyzer/internal/core"
	"github.com/AureliusCaelum/mail-analyzer/internal/utils"
)

// AdvisorFactory creates advisory model clients based on configuration
type AdvisorFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewAdvisorFactory creates a new advisor factory
func NewAdvisorFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *AdvisorFactory {
	return &AdvisorFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// Enabled reports whether an advisory model is configured
func (f *AdvisorFactory) Enabled() bool {
	return f.cfg.GetBool("advisor.enabled")
}

// CreateAdvisor creates an advisory client based on the configuration.
// When no advisor is enabled it returns nil without error.
func (f *AdvisorFactory) CreateAdvisor() (core.Advisor, error) {
	if !f.Enabled() {
		return nil, nil
	}

	provider := f.cfg.GetString("advisor.provider")
	switch provider {
	case "openai":
		return openai.NewFactory(f.cfg, f.logger, f.textProcessor).CreateAdvisor()
	case "gemini":
		return gemini.NewFactory(f.cfg, f.logger, f.textProcessor).CreateAdvisor()
	case "bedrock":
		return bedrock.NewFactory(f.cfg, f.logger, f.textProcessor).CreateAdvisor()
	default:
		return nil, fmt.Errorf("unsupported advisor provider: %s", provider)
	}
}
