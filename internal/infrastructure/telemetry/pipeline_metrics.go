package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrMeterNil is returned when a metrics constructor receives no meter.
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// Fetch results recorded on variation.products.fetched.
const (
	FetchResultOK      = "ok"
	FetchResultFailed  = "failed"
	FetchResultMissing = "missing"
)

// Metric attribute keys shared by the pipeline instruments.
var (
	AttrResult   = attribute.Key("result")
	AttrOutcome  = attribute.Key("outcome")
	AttrChannel  = attribute.Key("channel")
	AttrFeedType = attribute.Key("feed_type")
)

var (
	// DetectionDurationBuckets cover a whole detection run (seconds)
	DetectionDurationBuckets = []float64{0.5, 1, 5, 10, 30, 60, 120, 300, 600}
	// FeedDurationBuckets cover submission to terminal status (seconds)
	FeedDurationBuckets = []float64{15, 30, 60, 120, 180, 300, 600, 1800}
)

// PipelineMetrics holds the variation pipeline instruments. All methods are
// safe on a nil receiver so services can run without metrics.
type PipelineMetrics struct {
	productsFetched   metric.Int64Counter
	familiesDetected  metric.Int64Counter
	detectionDuration metric.Float64Histogram
	feedsSubmitted    metric.Int64Counter
	feedOutcomes      metric.Int64Counter
	feedDuration      metric.Float64Histogram
	feedsMonitoring   metric.Int64UpDownCounter
	syncRuns          metric.Int64Counter
	syncErrors        metric.Int64Counter
}

// instruments collects registration errors so NewPipelineMetrics reads as a list
type instruments struct {
	meter metric.Meter
	errs  []error
}

func (b *instruments) counter(name, desc, unit string) metric.Int64Counter {
	c, err := b.meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	if err != nil {
		b.errs = append(b.errs, fmt.Errorf("counter %s: %w", name, err))
	}
	return c
}

func (b *instruments) upDown(name, desc, unit string) metric.Int64UpDownCounter {
	c, err := b.meter.Int64UpDownCounter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	if err != nil {
		b.errs = append(b.errs, fmt.Errorf("up-down counter %s: %w", name, err))
	}
	return c
}

func (b *instruments) seconds(name, desc string, buckets []float64) metric.Float64Histogram {
	h, err := b.meter.Float64Histogram(name,
		metric.WithDescription(desc),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(buckets...),
	)
	if err != nil {
		b.errs = append(b.errs, fmt.Errorf("histogram %s: %w", name, err))
	}
	return h
}

// NewPipelineMetrics registers the pipeline instruments on meter.
func NewPipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	b := &instruments{meter: meter}
	m := &PipelineMetrics{
		productsFetched:   b.counter("variation.products.fetched", "Catalog products fetched for detection", "{products}"),
		familiesDetected:  b.counter("variation.families.detected", "Candidate families found to have variations", "{families}"),
		detectionDuration: b.seconds("variation.detection.duration", "Duration of a detection run", DetectionDurationBuckets),
		feedsSubmitted:    b.counter("variation.feeds.submitted", "Relationship feeds accepted by the provider", "{feeds}"),
		feedOutcomes:      b.counter("variation.feeds.outcome", "Final outcome of monitored feeds", "{feeds}"),
		feedDuration:      b.seconds("variation.feed.processing.duration", "Time from feed submission to its final outcome", FeedDurationBuckets),
		feedsMonitoring:   b.upDown("variation.feeds.monitoring", "Feeds currently being polled", "{feeds}"),
		syncRuns:          b.counter("variation.sync.runs", "Inventory and pricing sync runs per family", "{runs}"),
		syncErrors:        b.counter("variation.sync.errors", "Errors recorded during sync runs", "{errors}"),
	}
	if err := errors.Join(b.errs...); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordFetch counts one catalog fetch by result.
func (m *PipelineMetrics) RecordFetch(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.productsFetched.Add(ctx, 1, metric.WithAttributes(AttrResult.String(result)))
}

// RecordDetection records a finished detection run.
func (m *PipelineMetrics) RecordDetection(ctx context.Context, families int, d time.Duration) {
	if m == nil {
		return
	}
	m.familiesDetected.Add(ctx, int64(families))
	m.detectionDuration.Record(ctx, d.Seconds())
}

// RecordFeedSubmitted counts an accepted feed.
func (m *PipelineMetrics) RecordFeedSubmitted(ctx context.Context, feedType string) {
	if m == nil {
		return
	}
	m.feedsSubmitted.Add(ctx, 1, metric.WithAttributes(AttrFeedType.String(feedType)))
}

// MonitorStarted marks a feed as being polled.
func (m *PipelineMetrics) MonitorStarted(ctx context.Context) {
	if m == nil {
		return
	}
	m.feedsMonitoring.Add(ctx, 1)
}

// MonitorFinished records a feed's final outcome and how long it took since submission.
func (m *PipelineMetrics) MonitorFinished(ctx context.Context, outcome string, sinceSubmission time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(AttrOutcome.String(outcome))
	m.feedsMonitoring.Add(ctx, -1)
	m.feedOutcomes.Add(ctx, 1, attrs)
	m.feedDuration.Record(ctx, sinceSubmission.Seconds(), attrs)
}

// RecordSync records one channel push for a family and its error count.
func (m *PipelineMetrics) RecordSync(ctx context.Context, channel string, errCount int) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(AttrChannel.String(channel))
	m.syncRuns.Add(ctx, 1, attrs)
	if errCount > 0 {
		m.syncErrors.Add(ctx, int64(errCount), attrs)
	}
}
