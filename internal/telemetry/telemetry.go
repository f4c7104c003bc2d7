// Package telemetry wraps the pipeline's metric instruments: posts written,
// cycle duration, trend rows scored, and alerts fired. Metrics are never on
// the hot path's error return — a telemetry failure is logged and ignored,
// never propagated as a pipeline error.
package telemetry

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics bundles every instrument this system records.
type Metrics struct {
	provider *sdkmetric.MeterProvider

	postsWritten    metric.Int64Counter
	cycleDuration   metric.Float64Histogram
	trendRowsScored metric.Int64Counter
	alertsFired     metric.Int64Counter
}

// New builds a Metrics instance backed by a stdout exporter. A production
// deployment would swap the exporter for an OTLP one; the instrument names
// and recording call sites stay the same either way.
func New() (*Metrics, error) {
	exporter, err := stdoutmetric.New()
	if err != nil {
		return nil, err
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(time.Minute))),
	)
	meter := provider.Meter("trendwatch")

	postsWritten, err := meter.Int64Counter("ingest.posts_written",
		metric.WithDescription("number of posts upserted into the store per ingest cycle"))
	if err != nil {
		return nil, err
	}
	cycleDuration, err := meter.Float64Histogram("ingest.cycle_duration_seconds",
		metric.WithDescription("wall-clock duration of one ingest cycle"))
	if err != nil {
		return nil, err
	}
	trendRowsScored, err := meter.Int64Counter("trend.rows_scored",
		metric.WithDescription("number of trend rows produced per TrendEngine run"))
	if err != nil {
		return nil, err
	}
	alertsFired, err := meter.Int64Counter("alert.alerts_fired",
		metric.WithDescription("number of alerts that passed cooldown dedup and fired"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		provider:        provider,
		postsWritten:    postsWritten,
		cycleDuration:   cycleDuration,
		trendRowsScored: trendRowsScored,
		alertsFired:     alertsFired,
	}, nil
}

// Shutdown flushes and stops the underlying meter provider.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m == nil || m.provider == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}

// RecordIngestCycle records one ingest cycle's post count and duration.
func (m *Metrics) RecordIngestCycle(ctx context.Context, posts int, d time.Duration) {
	if m == nil {
		return
	}
	m.postsWritten.Add(ctx, int64(posts))
	m.cycleDuration.Record(ctx, d.Seconds())
}

// RecordTrendRun records how many trend rows one TrendEngine run produced.
func (m *Metrics) RecordTrendRun(ctx context.Context, rows int) {
	if m == nil {
		return
	}
	m.trendRowsScored.Add(ctx, int64(rows))
}

// RecordAlertsFired records how many alerts passed dedup and fired in one
// AlertGate pass.
func (m *Metrics) RecordAlertsFired(ctx context.Context, n int) {
	if m == nil {
		return
	}
	m.alertsFired.Add(ctx, int64(n))
}

// logDisabled is used when metric construction fails at startup but the
// caller chooses to continue without telemetry rather than aborting.
func logDisabled(err error) {
	log.Printf("telemetry: disabled: %v", err)
}
