package logx

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process logger. Development gets the console encoder.
func New(environment, service string) (*zap.Logger, error) {
	var cfg zap.Config
	if environment == "development" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
	}
	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return l.With(zap.String("service", service)), nil
}

// Critical marks an entry as an inconsistency that needs an operator.
// Use it with Error: logger.Error("...", logx.Critical()...).
func Critical(fields ...zap.Field) []zap.Field {
	return append([]zap.Field{zap.String("severity", "critical"), zap.Bool("alert", true)}, fields...)
}
