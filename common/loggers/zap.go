package loggers

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ceramicnetwork/go-pulse"
	"github.com/ceramicnetwork/go-pulse/common"
	"github.com/ceramicnetwork/go-pulse/models"
)

// NewLogger builds the service logger. The level comes from LOG_LEVEL and defaults to info.
func NewLogger() (models.Logger, error) {
	level := zap.NewAtomicLevelAt(zap.InfoLevel)
	if logLevel := os.Getenv(pulse.Env_LogLevel); len(logLevel) > 0 {
		parsedLevel, err := zap.ParseAtomicLevel(logLevel)
		if err != nil {
			return nil, fmt.Errorf("parsing log level %s: %w", logLevel, err)
		}
		level = parsedLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = level
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.InitialFields = map[string]interface{}{"service": common.ServiceName}
	baseLogger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return baseLogger.Sugar(), nil
}

func NewTestLogger() models.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.TimeKey = "timestamp"
	return zap.Must(cfg.Build()).Sugar()
}
