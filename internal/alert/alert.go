// Package alert evaluates scored trends against configured thresholds,
// dedups within a cooldown window via the Store, and dispatches surviving
// alerts to one or more notification Sinks.
package alert

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/geraldfingburke/trendwatch/internal/models"
	"github.com/geraldfingburke/trendwatch/internal/store"
	"github.com/geraldfingburke/trendwatch/internal/telemetry"
)

// Sink delivers an AlertPayload to an external system. A Sink failure never
// blocks other sinks or the alert from being recorded as fired.
type Sink interface {
	Name() string
	Send(ctx context.Context, payload models.AlertPayload) error
}

// AlertSinkError wraps a failed delivery attempt, naming the sink.
type AlertSinkError struct {
	Sink string
	Err  error
}

func (e *AlertSinkError) Error() string { return "alert sink " + e.Sink + ": " + e.Err.Error() }
func (e *AlertSinkError) Unwrap() error { return e.Err }

// Gate evaluates trends and fires alerts.
type Gate struct {
	store    *store.Store
	cfg      models.AlertConfig
	sinks    []Sink
	metrics  *telemetry.Metrics
	cooldown time.Duration
}

// New builds an alert Gate. cooldown comes from cfg.CooldownSeconds.
func New(st *store.Store, cfg models.AlertConfig, metrics *telemetry.Metrics, sinks ...Sink) *Gate {
	return &Gate{
		store:    st,
		cfg:      cfg,
		sinks:    sinks,
		metrics:  metrics,
		cooldown: time.Duration(cfg.CooldownSeconds) * time.Second,
	}
}

// Process classifies each trend, dedups within cooldown via the Store, and
// dispatches the survivors to every configured sink. It returns the alerts
// that actually fired (passed dedup), regardless of whether any sink
// delivery succeeded.
func (g *Gate) Process(ctx context.Context, trends []models.Trend) ([]models.Alert, error) {
	if !g.cfg.Enabled {
		return nil, nil
	}

	var fired []models.Alert
	now := time.Now().UTC()

	for _, t := range trends {
		kind, threshold, actual, ok := classify(t, g.cfg)
		if !ok {
			continue
		}

		alert := &models.Alert{
			Entity:         t.Entity,
			SourceKind:     t.SourceKind,
			Kind:           kind,
			ThresholdValue: threshold,
			ActualValue:    actual,
			Message:        alertMessage(kind, t),
			CreatedAt:      now,
			Status:         models.AlertStatusActive,
		}

		didFire, err := g.store.InsertAlert(ctx, alert, g.cooldown)
		if err != nil {
			return fired, err
		}
		if !didFire {
			continue
		}

		fired = append(fired, *alert)
		g.dispatch(ctx, payloadFor(*alert, t))
	}

	if g.metrics != nil {
		g.metrics.RecordAlertsFired(ctx, len(fired))
	}
	return fired, nil
}

// viralTrendScoreThreshold is the fixed trend_score cutoff spec §4.7 gives
// for viral classification — unlike the other thresholds, it is not
// configurable.
const viralTrendScoreThreshold = 3.0

// classify decides whether a trend crosses an alert threshold and, if so,
// which kind of alert it is. The keyword watchlist overrides the numeric
// thresholds: any watchlist entity that appears at all fires a viral alert.
// Otherwise a trend is viral if trend_score >= 3.0, else trend_spike if
// trend_score >= trend_threshold OR growth_rate >= growth_threshold OR
// current_count >= volume_threshold.
func classify(t models.Trend, cfg models.AlertConfig) (kind models.AlertKind, threshold, actual float64, ok bool) {
	for _, kw := range cfg.KeywordWatchlist {
		if kw == t.Entity {
			return models.AlertViral, viralTrendScoreThreshold, t.TrendScore, true
		}
	}

	if t.TrendScore >= viralTrendScoreThreshold {
		return models.AlertViral, viralTrendScoreThreshold, t.TrendScore, true
	}

	switch {
	case t.TrendScore >= cfg.TrendThreshold:
		return models.AlertTrendSpike, cfg.TrendThreshold, t.TrendScore, true
	case t.GrowthRate >= cfg.GrowthThreshold:
		return models.AlertTrendSpike, cfg.GrowthThreshold, t.GrowthRate, true
	case t.CurrentCount >= cfg.VolumeThreshold:
		return models.AlertTrendSpike, float64(cfg.VolumeThreshold), float64(t.CurrentCount), true
	}

	return "", 0, 0, false
}

func alertMessage(kind models.AlertKind, t models.Trend) string {
	switch kind {
	case models.AlertViral:
		return fmt.Sprintf("%q on %s is going viral: %d mentions, %.0f%% growth",
			t.Entity, t.SourceKind, t.CurrentCount, t.GrowthRate*100)
	default:
		return fmt.Sprintf("%q on %s is trending: score %.2f (%d mentions, baseline %d)",
			t.Entity, t.SourceKind, t.TrendScore, t.CurrentCount, t.BaselineCount)
	}
}

func payloadFor(a models.Alert, t models.Trend) models.AlertPayload {
	return models.AlertPayload{
		Kind:         a.Kind,
		Entity:       a.Entity,
		SourceKind:   a.SourceKind,
		TrendScore:   t.TrendScore,
		CurrentCount: t.CurrentCount,
		GrowthRate:   t.GrowthRate,
		Timestamp:    a.CreatedAt,
		Message:      a.Message,
	}
}

// dispatch sends to every sink independently; a failing sink is logged, not
// fatal to the others or to the alert having fired.
func (g *Gate) dispatch(ctx context.Context, payload models.AlertPayload) {
	for _, sink := range g.sinks {
		if err := sink.Send(ctx, payload); err != nil {
			log.Printf("alert: %v", &AlertSinkError{Sink: sink.Name(), Err: err})
		}
	}
}
