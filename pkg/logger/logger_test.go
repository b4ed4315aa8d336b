package logger

import (
	"context"
	"testing"

	"github.com/soundprediction/azurellm/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"", zapcore.InfoLevel},
		{"debug", zapcore.DebugLevel},
		{"INFO", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseLevel("loud")
	assert.ErrorContains(t, err, `invalid log level "loud"`)
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(config.LogConfig{Level: "loud"}, "svc")
	assert.Error(t, err)
}

func TestNew_TeesExtraCores(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	for _, format := range []string{"json", "console"} {
		log, err := New(config.LogConfig{Level: "warn", Format: format}, "azurellm", core)
		require.NoError(t, err)

		log.Info("dropped by primary level")
		log.Warn("kept", zap.Int("n", 1))
	}

	entries := logs.FilterMessage("kept").All()
	require.Len(t, entries, 2)
	assert.Equal(t, "azurellm", entries[0].ContextMap()["service"])
	assert.Zero(t, logs.FilterMessage("dropped by primary level").Len())
}

func TestWithTrace(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	WithTrace(context.Background(), base).Info("no span")
	assert.NotContains(t, logs.All()[0].ContextMap(), "trace_id")

	traceID, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	spanID, _ := trace.SpanIDFromHex("0102030405060708")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))

	WithTrace(ctx, base).Info("with span")
	fields := logs.All()[1].ContextMap()
	assert.Equal(t, "0102030405060708090a0b0c0d0e0f10", fields["trace_id"])
	assert.Equal(t, "0102030405060708", fields["span_id"])
}
