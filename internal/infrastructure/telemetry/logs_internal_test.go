package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestMinLevelCore(t *testing.T) {
	inner, logs := observer.New(zapcore.DebugLevel)
	core := &minLevelCore{Core: inner, min: zapcore.WarnLevel}

	log := zap.New(core).With(zap.String("component", "feed_monitor"))
	log.Info("dropped")
	log.Warn("kept")
	log.Error("kept too")

	assert.False(t, core.Enabled(zapcore.InfoLevel))
	assert.True(t, core.Enabled(zapcore.ErrorLevel))
	assert.Equal(t, 2, logs.Len())
	assert.Equal(t, "feed_monitor", logs.All()[0].ContextMap()["component"])
}

func TestSamplerFor(t *testing.T) {
	assert.Contains(t, samplerFor(1).Description(), "AlwaysOn")
	assert.Contains(t, samplerFor(0).Description(), "AlwaysOff")
	assert.Contains(t, samplerFor(0.25).Description(), "TraceIDRatioBased")
}
