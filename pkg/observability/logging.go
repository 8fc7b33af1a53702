package observability

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggingConfig selects the zap preset and level
type LoggingConfig struct {
	// Environment "production" selects JSON output, anything else console output
	Environment string
	Level       string
}

// NewLevel returns a runtime-adjustable level set from cfg.Level
func NewLevel(cfg LoggingConfig) zap.AtomicLevel {
	return zap.NewAtomicLevelAt(ParseLevel(cfg.Level))
}

// NewLogger builds the process logger around level. Changing level later,
// as the config watcher does on reload, affects the returned logger.
func NewLogger(cfg LoggingConfig, level zap.AtomicLevel) (*zap.Logger, error) {
	var zapConfig zap.Config
	if cfg.Environment == "production" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}
	zapConfig.Level = level

	logger, err := zapConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}

// ParseLevel maps a level name onto a zap level; unknown names mean info
func ParseLevel(name string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return zap.DebugLevel
	case "warn", "warning":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}
