package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/AureliusCaelum/mail-analyzer/internal/analyzer"
	"github.com/AureliusCaelum/mail-analyzer/internal/config"
	"github.com/AureliusCaelum/mail-analyzer/internal/core"
	"github.com/AureliusCaelum/mail-analyzer/internal/di"
	"github.com/AureliusCaelum/mail-analyzer/internal/trafficlight"
)

func main() {
	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	cfg *config.Config,
	logger *zap.Logger,
	source core.MessageSource,
	threatAnalyzer *analyzer.ThreatAnalyzer,
	store core.ModelStore,
) error {
	defer logger.Sync()

	if err := source.Connect(); err != nil {
		logger.Fatal("Failed to connect message source",
			zap.String("source", source.Name()), zap.Error(err))
		return err
	}

	interval, err := cfg.GetDuration("source.scan_interval")
	if err != nil {
		logger.Fatal("Invalid scan interval", zap.Error(err))
		return err
	}
	maxMessages := cfg.GetInt("source.max_messages")
	renderer := trafficlight.NewRenderer(cfg.GetString("logging.format") != "json")

	logger.Info("Mail analyzer started",
		zap.String("source", source.Name()),
		zap.Duration("scan_interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	scan(source, threatAnalyzer, renderer, maxMessages, logger)
	for {
		select {
		case <-ticker.C:
			scan(source, threatAnalyzer, renderer, maxMessages, logger)
		case <-sigCh:
			logger.Info("Shutting down...")

			if err := source.Disconnect(); err != nil {
				logger.Error("Failed to disconnect message source", zap.Error(err))
			}
			if stopper, ok := store.(interface{ Stop() }); ok {
				stopper.Stop()
			}

			logger.Info("Shutdown complete")
			return nil
		}
	}
}

// scan fetches one batch of messages and analyzes it.
func scan(
	source core.MessageSource,
	threatAnalyzer *analyzer.ThreatAnalyzer,
	renderer *trafficlight.Renderer,
	maxMessages int,
	logger *zap.Logger,
) {
	messages, err := source.Fetch(maxMessages)
	if err != nil {
		logger.Error("Failed to fetch messages", zap.Error(err))
		return
	}
	if len(messages) == 0 {
		logger.Debug("No messages to analyze")
		return
	}

	verdicts := threatAnalyzer.AnalyzeBatch(messages, nil)
	for i := range verdicts {
		fmt.Println(renderer.RenderLine(&messages[i], verdicts[i]))
	}

	logger.Info("Scan complete", zap.Int("messages", len(messages)))
}
