// Package logging builds the zap loggers used by the scanning daemon and
// the one-shot CLI.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/AureliusCaelum/mail-analyzer/internal/config"
)

// InitLogger initializes the daemon logger from configuration.
func InitLogger(cfg *config.Config) (*zap.Logger, error) {
	return build(
		cfg.GetString("logging.format") == "json",
		parseLevel(cfg.GetString("logging.level")),
	)
}

// InitConsoleLogger initializes a console-friendly logger for interactive
// runs; verbose enables debug output.
func InitConsoleLogger(verbose bool, jsonFormat bool) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	return build(jsonFormat, level)
}

func build(jsonFormat bool, level zapcore.Level) (*zap.Logger, error) {
	var logConfig zap.Config
	if jsonFormat {
		logConfig = zap.NewProductionConfig()
		logConfig.EncoderConfig.TimeKey = "time"
		logConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		logConfig = zap.NewDevelopmentConfig()
		logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	logConfig.Level = zap.NewAtomicLevelAt(level)

	logger, err := logConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger.Named("mail-analyzer"), nil
}

// parseLevel maps a configured level name to a zap level; unknown names
// fall back to info.
func parseLevel(raw string) zapcore.Level {
	switch raw {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
