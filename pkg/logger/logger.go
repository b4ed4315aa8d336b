// Package logger builds the zap loggers used across the module.
package logger

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/soundprediction/azurellm/pkg/config"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a logger from cfg. Format "console" gives colored, human
// readable output; anything else gives JSON. Extra cores are tee'd behind the
// primary core and never see entries below cfg.Level. Telemetry sinks are
// attached this way.
func New(cfg config.LogConfig, serviceName string, extra ...zapcore.Core) (*zap.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderCfg.EncodeDuration = zapcore.MillisDurationEncoder

	encoding := "json"
	if strings.EqualFold(cfg.Format, "console") {
		encoding = "console"
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Encoding:         encoding,
		EncoderConfig:    encoderCfg,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	var opts []zap.Option
	if len(extra) > 0 {
		cores := make([]zapcore.Core, 0, len(extra))
		for _, c := range extra {
			// Cores stricter than level keep their own threshold.
			if leveled, err := zapcore.NewIncreaseLevelCore(c, level); err == nil {
				c = leveled
			}
			cores = append(cores, c)
		}
		opts = append(opts, zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return zapcore.NewTee(append([]zapcore.Core{core}, cores...)...)
		}))
	}

	logger, err := zapCfg.Build(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	// Added after Build so tee'd cores carry them too.
	fields := []zap.Field{zap.Int("pid", os.Getpid())}
	if serviceName != "" {
		fields = append(fields, zap.String("service", serviceName))
	}
	return logger.With(fields...), nil
}

// ParseLevel maps a config level to a zap level. Empty means info and
// "warning" is accepted for warn.
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "":
		return zapcore.InfoLevel, nil
	case "warning":
		return zapcore.WarnLevel, nil
	}
	l, err := zapcore.ParseLevel(level)
	if err != nil {
		return zapcore.InfoLevel, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return l, nil
}

// WithTrace returns logger annotated with the trace and span IDs of the span
// in ctx, or logger itself when ctx carries no valid span.
func WithTrace(ctx context.Context, logger *zap.Logger) *zap.Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return logger
	}
	return logger.With(
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	)
}
