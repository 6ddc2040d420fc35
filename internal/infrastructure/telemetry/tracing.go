package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope of pipeline spans
const TracerName = "variationd"

// Span attribute keys
const (
	AttrKeyFamilyID      = attribute.Key("variation.family_id")
	AttrKeyFeedID        = attribute.Key("variation.feed_id")
	AttrKeyMarketplaceID = attribute.Key("variation.marketplace_id")
	AttrKeySKUCount      = attribute.Key("variation.sku_count")
	AttrKeyFamilies      = attribute.Key("variation.families")
	AttrKeySkipped       = attribute.Key("variation.skipped")
)

// FamilyID tags a span with the family it works on
func FamilyID(id string) attribute.KeyValue { return AttrKeyFamilyID.String(id) }

// FeedID tags a span with a provider feed id
func FeedID(id string) attribute.KeyValue { return AttrKeyFeedID.String(id) }

// MarketplaceID tags a span with the target marketplace
func MarketplaceID(id string) attribute.KeyValue { return AttrKeyMarketplaceID.String(id) }

// SKUCount tags a span with the number of SKUs involved
func SKUCount(n int) attribute.KeyValue { return AttrKeySKUCount.Int(n) }

// StartSpan starts an internal span named component.operation on the global
// tracer provider. The caller ends it.
//
//	ctx, span := telemetry.StartSpan(ctx, "FeedPublisher", "Publish", telemetry.FamilyID(id))
//	defer span.End()
func StartSpan(ctx context.Context, component, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, component+"."+operation,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// RecordError marks span failed with err. Nil span or error is ignored.
func RecordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
