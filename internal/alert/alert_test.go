package alert

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/geraldfingburke/trendwatch/internal/models"
	"github.com/geraldfingburke/trendwatch/internal/store"
)

func TestClassifyKeywordWatchlistOverridesThresholds(t *testing.T) {
	cfg := models.AlertConfig{
		KeywordWatchlist: []string{"bitcoin"},
		TrendThreshold:   100,
		VolumeThreshold:  100,
		GrowthThreshold:  100,
	}
	tr := models.Trend{Entity: "bitcoin", TrendScore: 0.1, CurrentCount: 1, GrowthRate: 0}
	kind, _, _, ok := classify(tr, cfg)
	if !ok || kind != models.AlertViral {
		t.Fatalf("classify() = (%v, ok=%v), want viral override for watchlisted entity", kind, ok)
	}
}

func TestClassifyTrendScoreAboveViralCutoffIsViral(t *testing.T) {
	cfg := models.AlertConfig{VolumeThreshold: 1000, GrowthThreshold: 1000, TrendThreshold: 1000}
	tr := models.Trend{Entity: "x", CurrentCount: 1, GrowthRate: 0, TrendScore: 3.5}
	kind, threshold, actual, ok := classify(tr, cfg)
	if !ok || kind != models.AlertViral {
		t.Fatalf("classify() = (%v, ok=%v), want viral when trend_score >= 3.0", kind, ok)
	}
	if threshold != viralTrendScoreThreshold || actual != tr.TrendScore {
		t.Fatalf("classify() threshold/actual = %v/%v, want %v/%v", threshold, actual, viralTrendScoreThreshold, tr.TrendScore)
	}
}

func TestClassifyGrowthRateAloneIsTrendSpike(t *testing.T) {
	cfg := models.AlertConfig{VolumeThreshold: 1000, GrowthThreshold: 2.0, TrendThreshold: 1000}
	tr := models.Trend{Entity: "x", CurrentCount: 1, GrowthRate: 3.0, TrendScore: 0.1}
	kind, _, _, ok := classify(tr, cfg)
	if !ok || kind != models.AlertTrendSpike {
		t.Fatalf("classify() = (%v, ok=%v), want trend_spike when growth_rate alone crosses growth_threshold", kind, ok)
	}
}

func TestClassifyVolumeAloneIsTrendSpike(t *testing.T) {
	cfg := models.AlertConfig{VolumeThreshold: 50, GrowthThreshold: 1000, TrendThreshold: 1000}
	tr := models.Trend{Entity: "x", CurrentCount: 60, GrowthRate: 0, TrendScore: 0.1}
	kind, _, _, ok := classify(tr, cfg)
	if !ok || kind != models.AlertTrendSpike {
		t.Fatalf("classify() = (%v, ok=%v), want trend_spike when current_count alone crosses volume_threshold", kind, ok)
	}
}

func TestClassifyTrendScoreThreshold(t *testing.T) {
	cfg := models.AlertConfig{VolumeThreshold: 1000, GrowthThreshold: 1000, TrendThreshold: 2.0}
	tr := models.Trend{Entity: "x", CurrentCount: 1, GrowthRate: 0, TrendScore: 2.5}
	kind, _, _, ok := classify(tr, cfg)
	if !ok || kind != models.AlertTrendSpike {
		t.Fatalf("classify() = (%v, ok=%v), want trend_spike on score threshold below the viral cutoff", kind, ok)
	}
}

func TestClassifyBelowAllThresholdsIsNotOk(t *testing.T) {
	cfg := models.AlertConfig{VolumeThreshold: 1000, GrowthThreshold: 1000, TrendThreshold: 1000}
	tr := models.Trend{Entity: "x", CurrentCount: 1, GrowthRate: 0.1, TrendScore: 0.1}
	_, _, _, ok := classify(tr, cfg)
	if ok {
		t.Fatalf("classify() ok = true, want false for unremarkable trend")
	}
}

type fakeSink struct {
	name    string
	sent    []models.AlertPayload
	failing bool
}

func (f *fakeSink) Name() string { return f.name }
func (f *fakeSink) Send(_ context.Context, payload models.AlertPayload) error {
	if f.failing {
		return errors.New("boom")
	}
	f.sent = append(f.sent, payload)
	return nil
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(t.TempDir() + "/alert-test.db")
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestProcessDispatchesToAllSinksAndSkipsOneFailure(t *testing.T) {
	st := openTestStore(t)
	good := &fakeSink{name: "good"}
	bad := &fakeSink{name: "bad", failing: true}

	gate := New(st, models.AlertConfig{
		Enabled:        true,
		TrendThreshold: 1.0,
	}, nil, good, bad)

	trends := []models.Trend{
		{Entity: "bitcoin", SourceKind: models.SourceFeed, TrendScore: 5.0, CurrentCount: 10, CreatedAt: time.Now()},
	}

	fired, err := gate.Process(context.Background(), trends)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(fired) != 1 {
		t.Fatalf("Process() fired = %v, want 1 alert", fired)
	}
	if len(good.sent) != 1 {
		t.Fatalf("good sink received %d payloads, want 1", len(good.sent))
	}
}

func TestProcessDisabledGateReturnsNothing(t *testing.T) {
	st := openTestStore(t)
	gate := New(st, models.AlertConfig{Enabled: false}, nil)
	fired, err := gate.Process(context.Background(), []models.Trend{
		{Entity: "x", TrendScore: 1000, CreatedAt: time.Now()},
	})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if fired != nil {
		t.Fatalf("Process() fired = %v, want nil when gate disabled", fired)
	}
}

func TestProcessRespectsCooldownAcrossCalls(t *testing.T) {
	st := openTestStore(t)
	sink := &fakeSink{name: "s"}
	gate := New(st, models.AlertConfig{
		Enabled:         true,
		TrendThreshold:  1.0,
		CooldownSeconds: 3600,
	}, nil, sink)

	tr := []models.Trend{{Entity: "bitcoin", SourceKind: models.SourceFeed, TrendScore: 5.0, CreatedAt: time.Now()}}

	first, err := gate.Process(context.Background(), tr)
	if err != nil || len(first) != 1 {
		t.Fatalf("first Process() = %v, %v, want one fired alert", first, err)
	}

	second, err := gate.Process(context.Background(), tr)
	if err != nil {
		t.Fatalf("second Process() error = %v", err)
	}
	if len(second) != 0 {
		t.Fatalf("second Process() fired = %v, want none within cooldown", second)
	}
	if len(sink.sent) != 1 {
		t.Fatalf("sink received %d payloads across both calls, want 1", len(sink.sent))
	}
}
