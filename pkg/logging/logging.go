package logging

import (
	"github.com/canopy-network/validatorstats/pkg/utils"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process logger from LOG_LEVEL and LOG_ENCODING.
// Every entry carries the service name and, when set, the chain id.
func New(service, chainID string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = utils.Env("LOG_ENCODING", "json")
	cfg.Level = zap.NewAtomicLevelAt(ParseLevel(utils.Env("LOG_LEVEL", "info")))
	if cfg.Level.Level() == zap.DebugLevel {
		cfg.Development = true
	}

	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	fields := []zap.Field{zap.String("service", service)}
	if chainID != "" {
		fields = append(fields, zap.String("chain_id", chainID))
	}
	l, err := cfg.Build(zap.Fields(fields...))
	if err != nil {
		return nil, err
	}
	return l, nil
}

// ParseLevel maps a LOG_LEVEL value to a zap level, defaulting to info.
func ParseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zap.DebugLevel
	case "info":
		return zap.InfoLevel
	case "warn":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}
