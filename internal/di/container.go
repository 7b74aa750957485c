package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/AureliusCaelum/mail-analyzer/internal/analyzer"
	"github.com/AureliusCaelum/mail-analyzer/internal/cluster"
	"github.com/AureliusCaelum/mail-analyzer/internal/config"
	"github.com/AureliusCaelum/mail-analyzer/internal/contextaware"
	"github.com/AureliusCaelum/mail-analyzer/internal/core"
	"github.com/AureliusCaelum/mail-analyzer/internal/factory"
	"github.com/AureliusCaelum/mail-analyzer/internal/intel"
	"github.com/AureliusCaelum/mail-analyzer/internal/logging"
	"github.com/AureliusCaelum/mail-analyzer/internal/ml"
	"github.com/AureliusCaelum/mail-analyzer/internal/rules"
	"github.com/AureliusCaelum/mail-analyzer/internal/trend"
	"github.com/AureliusCaelum/mail-analyzer/internal/utils"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register text processor
	if err := container.Provide(utils.NewTextProcessor); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewStoreFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewSourceFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewAdvisorFactory); err != nil {
		return nil, err
	}

	// Register model store
	if err := container.Provide(func(f *factory.StoreFactory) (core.ModelStore, error) {
		return f.CreateModelStore()
	}); err != nil {
		return nil, err
	}

	// Register message source
	if err := container.Provide(func(f *factory.SourceFactory) (core.MessageSource, error) {
		return f.CreateMessageSource()
	}); err != nil {
		return nil, err
	}

	// Register advisory model (may be nil when disabled)
	if err := container.Provide(func(f *factory.AdvisorFactory) (core.Advisor, error) {
		return f.CreateAdvisor()
	}); err != nil {
		return nil, err
	}

	// Register threat intelligence
	if err := container.Provide(func(cfg *config.Config, advisor core.Advisor, logger *zap.Logger) core.ThreatIntel {
		return intel.NewService(cfg.GetIntel(), advisor, logger)
	}); err != nil {
		return nil, err
	}

	// Register scoring collaborators
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) *rules.Scorer {
		return rules.NewScorer(cfg.GetRules(), logger)
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(cfg *config.Config, store core.ModelStore, logger *zap.Logger) *ml.Analyzer {
		return ml.NewAnalyzer(cfg.GetML(), store, logger)
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(cfg *config.Config, store core.ModelStore, logger *zap.Logger) *ml.FeedbackLearner {
		return ml.NewFeedbackLearner(cfg.GetFeedback(), store, logger)
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(contextaware.NewAnalyzer); err != nil {
		return nil, err
	}
	if err := container.Provide(func(cfg *config.Config, store core.ModelStore, logger *zap.Logger) *cluster.Analyzer {
		return cluster.NewAnalyzer(cfg.GetCluster(), store, logger)
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(trend.NewEngine); err != nil {
		return nil, err
	}

	// Register the fusion orchestrator
	if err := container.Provide(func(
		cfg *config.Config,
		ruleScorer *rules.Scorer,
		mlAnalyzer *ml.Analyzer,
		feedback *ml.FeedbackLearner,
		contextAnalyzer *contextaware.Analyzer,
		clusterAnalyzer *cluster.Analyzer,
		trendEngine *trend.Engine,
		intelService core.ThreatIntel,
		logger *zap.Logger,
	) *analyzer.ThreatAnalyzer {
		return analyzer.NewThreatAnalyzer(
			cfg.GetAnalysis(),
			ruleScorer,
			mlAnalyzer,
			feedback,
			contextAnalyzer,
			clusterAnalyzer,
			trendEngine,
			intelService,
			logger,
		)
	}); err != nil {
		return nil, err
	}

	return container, nil
}
