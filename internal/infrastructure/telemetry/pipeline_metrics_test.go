package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/msylla54/ECOMSIMPLY-Prod-V1.10-sub002/internal/infrastructure/telemetry"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumFor(t *testing.T, m metricdata.Metrics, attr attribute.KeyValue) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)
	var total int64
	for _, dp := range sum.DataPoints {
		if attr.Key == "" {
			total += dp.Value
			continue
		}
		if v, ok := dp.Attributes.Value(attr.Key); ok && v == attr.Value {
			total += dp.Value
		}
	}
	return total
}

func TestNewPipelineMetrics_NilMeter(t *testing.T) {
	m, err := telemetry.NewPipelineMetrics(nil)
	assert.ErrorIs(t, err, telemetry.ErrMeterNil)
	assert.Nil(t, m)
}

func TestPipelineMetrics_NilReceiver(t *testing.T) {
	var m *telemetry.PipelineMetrics
	ctx := context.Background()

	assert.NotPanics(t, func() {
		m.RecordFetch(ctx, telemetry.FetchResultOK)
		m.RecordDetection(ctx, 2, time.Second)
		m.RecordFeedSubmitted(ctx, "POST_PRODUCT_RELATIONSHIP_DATA")
		m.MonitorStarted(ctx)
		m.MonitorFinished(ctx, "SUCCEEDED", time.Minute)
		m.RecordSync(ctx, "inventory", 1)
	})
}

func TestPipelineMetrics_Records(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := telemetry.NewPipelineMetrics(provider.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordFetch(ctx, telemetry.FetchResultOK)
	m.RecordFetch(ctx, telemetry.FetchResultOK)
	m.RecordFetch(ctx, telemetry.FetchResultFailed)
	m.RecordDetection(ctx, 3, 2*time.Second)
	m.RecordFeedSubmitted(ctx, "POST_PRODUCT_RELATIONSHIP_DATA")
	m.MonitorStarted(ctx)
	m.MonitorStarted(ctx)
	m.MonitorFinished(ctx, "FAILED", 90*time.Second)
	m.RecordSync(ctx, "inventory", 2)
	m.RecordSync(ctx, "pricing", 0)

	metrics := collect(t, reader)

	fetched := metrics["variation.products.fetched"]
	assert.Equal(t, int64(2), sumFor(t, fetched, telemetry.AttrResult.String(telemetry.FetchResultOK)))
	assert.Equal(t, int64(1), sumFor(t, fetched, telemetry.AttrResult.String(telemetry.FetchResultFailed)))

	assert.Equal(t, int64(3), sumFor(t, metrics["variation.families.detected"], attribute.KeyValue{}))
	assert.Equal(t, int64(1), sumFor(t, metrics["variation.feeds.submitted"], attribute.KeyValue{}))
	assert.Equal(t, int64(1), sumFor(t, metrics["variation.feeds.monitoring"], attribute.KeyValue{}))
	assert.Equal(t, int64(1), sumFor(t, metrics["variation.feeds.outcome"], telemetry.AttrOutcome.String("FAILED")))
	assert.Equal(t, int64(2), sumFor(t, metrics["variation.sync.runs"], attribute.KeyValue{}))
	assert.Equal(t, int64(2), sumFor(t, metrics["variation.sync.errors"], telemetry.AttrChannel.String("inventory")))

	hist, ok := metrics["variation.feed.processing.duration"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
	assert.InDelta(t, 90.0, hist.DataPoints[0].Sum, 0.001)

	detection, ok := metrics["variation.detection.duration"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	assert.InDelta(t, 2.0, detection.DataPoints[0].Sum, 0.001)
}
