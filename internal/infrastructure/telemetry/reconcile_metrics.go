package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/storefront/landedcost/internal/domain/pricing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys
var (
	AttrOutcome  = attribute.Key("outcome")
	AttrCode     = attribute.Key("code")
	AttrSeverity = attribute.Key("severity")
	AttrKind     = attribute.Key("kind")
)

// ReconcileDurationBuckets are the histogram boundaries for one product
// reconciliation, in seconds
var ReconcileDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

// ReconcileMetrics records reconciliation outcomes, pricing anomalies and
// pricing degradations
type ReconcileMetrics struct {
	reconciles metric.Int64Counter
	duration   metric.Float64Histogram
	anomalies  metric.Int64Counter
	degraded   metric.Int64Counter
}

// NewReconcileMetrics creates the reconciliation instruments on meter
func NewReconcileMetrics(meter metric.Meter) (*ReconcileMetrics, error) {
	reconciles, err := meter.Int64Counter("landedcost_reconcile_total",
		metric.WithDescription("Supplier products reconciled, by outcome"),
		metric.WithUnit("{product}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create reconcile counter: %w", err)
	}

	duration, err := meter.Float64Histogram("landedcost_reconcile_duration_seconds",
		metric.WithDescription("Time spent reconciling one supplier product"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(ReconcileDurationBuckets...))
	if err != nil {
		return nil, fmt.Errorf("failed to create reconcile histogram: %w", err)
	}

	anomalies, err := meter.Int64Counter("landedcost_anomalies_total",
		metric.WithDescription("Pricing anomalies detected, by code and severity"),
		metric.WithUnit("{anomaly}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create anomaly counter: %w", err)
	}

	degraded, err := meter.Int64Counter("landedcost_pricing_degraded_total",
		metric.WithDescription("Quotes computed with a degraded input, by kind"),
		metric.WithUnit("{quote}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create degradation counter: %w", err)
	}

	return &ReconcileMetrics{
		reconciles: reconciles,
		duration:   duration,
		anomalies:  anomalies,
		degraded:   degraded,
	}, nil
}

// RecordReconcile counts one reconciliation and observes its duration
func (m *ReconcileMetrics) RecordReconcile(ctx context.Context, outcome string, duration time.Duration) {
	attrs := metric.WithAttributes(AttrOutcome.String(outcome))
	m.reconciles.Add(ctx, 1, attrs)
	m.duration.Record(ctx, duration.Seconds(), attrs)
}

// RecordAnomaly counts one detected anomaly
func (m *ReconcileMetrics) RecordAnomaly(ctx context.Context, a pricing.Anomaly) {
	m.anomalies.Add(ctx, 1, metric.WithAttributes(
		AttrCode.String(a.Code),
		AttrSeverity.String(string(a.Severity)),
	))
}

// RecordDegradation counts one degraded quote
func (m *ReconcileMetrics) RecordDegradation(ctx context.Context, kind pricing.Degradation) {
	m.degraded.Add(ctx, 1, metric.WithAttributes(AttrKind.String(string(kind))))
}
