package mylogger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWarn_AddsTraceFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	Warn(ctx, logger, "lookup failed", zap.String("pos", "A-1"))

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, zapcore.WarnLevel, entries[0].Level)

	fields := entries[0].ContextMap()
	require.Equal(t, "A-1", fields["pos"])
	require.Equal(t, traceID.String(), fields["trace_id"])
	require.Equal(t, spanID.String(), fields["span_id"])
}

func TestInfo_NoSpan(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	Info(context.Background(), zap.New(core), "hello")
	Debug(context.Background(), zap.New(core), "details")

	require.Equal(t, 2, logs.Len())
	require.NotContains(t, logs.All()[0].ContextMap(), "trace_id")
}

func TestNilLogger(t *testing.T) {
	require.NotPanics(t, func() {
		Error(context.Background(), nil, "ignored")
	})
}
