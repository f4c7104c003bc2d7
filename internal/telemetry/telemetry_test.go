package telemetry

import (
	"context"
	"testing"
	"time"
)

func TestNewBuildsUsableMetrics(t *testing.T) {
	m, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer m.Shutdown(context.Background())

	m.RecordIngestCycle(context.Background(), 5, 2*time.Second)
	m.RecordTrendRun(context.Background(), 3)
	m.RecordAlertsFired(context.Background(), 1)
}

func TestNilMetricsAreSafeToRecordAgainst(t *testing.T) {
	var m *Metrics
	m.RecordIngestCycle(context.Background(), 5, time.Second)
	m.RecordTrendRun(context.Background(), 1)
	m.RecordAlertsFired(context.Background(), 1)
	if err := m.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() on nil Metrics error = %v, want nil", err)
	}
}
