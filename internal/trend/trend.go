// Package trend implements the statistical trend-scoring pass: for every
// entity seen in the current window, compare its mention count against a
// per-source baseline distribution and produce a composite trend score.
package trend

import (
	"context"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/geraldfingburke/trendwatch/internal/models"
	"github.com/geraldfingburke/trendwatch/internal/store"
	"github.com/geraldfingburke/trendwatch/internal/telemetry"
)

// growthRateSentinel stands in for a mathematically infinite growth rate
// (baseline count of zero, current count positive) so the field is always
// a finite, storable float. The boost logic below only cares whether
// growth rate exceeds 1.0, so the exact magnitude of the sentinel doesn't
// change behavior, only what gets persisted.
const growthRateSentinel = 9999.0

// entityCount is one (entity, source_kind) count over a window.
type entityCount struct {
	entity     string
	sourceKind models.SourceKind
	count      int
}

// Engine computes trend scores from the Store's post history.
type Engine struct {
	store   *store.Store
	cfg     models.TrendConfig
	metrics *telemetry.Metrics
}

// New builds a trend Engine.
func New(st *store.Store, cfg models.TrendConfig, metrics *telemetry.Metrics) *Engine {
	return &Engine{store: st, cfg: cfg, metrics: metrics}
}

// Run computes and persists trend scores for the configured window relative
// to the configured baseline, using now as the anchor for both windows.
func (e *Engine) Run(ctx context.Context, now time.Time) ([]models.Trend, error) {
	currentFrom := now.Add(-time.Duration(e.cfg.WindowHours) * time.Hour)
	baselineFrom := now.Add(-time.Duration(e.cfg.BaselineHours) * time.Hour)

	currentCounts, err := e.countEntities(ctx, currentFrom, now)
	if err != nil {
		return nil, err
	}
	if len(currentCounts) == 0 {
		return nil, nil
	}

	baselineCounts, err := e.countEntities(ctx, baselineFrom, now)
	if err != nil {
		return nil, err
	}

	trends := scoreTrends(currentCounts, baselineCounts, e.cfg.MinCount, e.cfg.WindowHours, e.cfg.BaselineHours, now)
	if len(trends) == 0 {
		return nil, nil
	}

	if err := e.store.InsertTrends(ctx, trends); err != nil {
		return nil, err
	}
	if e.metrics != nil {
		e.metrics.RecordTrendRun(ctx, len(trends))
	}
	return trends, nil
}

// countEntities reads every post in [from, to) across both source kinds and
// tallies mention counts per (entity, source_kind), exploding the
// comma-joined entities column the way the reference pipeline explodes it
// at query time.
func (e *Engine) countEntities(ctx context.Context, from, to time.Time) (map[string]map[models.SourceKind]int, error) {
	counts := make(map[string]map[models.SourceKind]int)

	for _, kind := range []models.SourceKind{models.SourceDiscussion, models.SourceFeed} {
		posts, err := e.store.QueryPostsInWindow(ctx, kind, from, to)
		if err != nil {
			return nil, err
		}
		for _, p := range posts {
			for _, entity := range p.Entities {
				if entity == "" {
					continue
				}
				if counts[entity] == nil {
					counts[entity] = make(map[models.SourceKind]int)
				}
				counts[entity][kind]++
			}
		}
	}
	return counts, nil
}

// scoreTrends implements the exact algorithm: left-join current against
// baseline (missing baseline treated as zero), filter by minimum current
// count, group by source kind (skipping groups under two entities — sample
// standard deviation is undefined), z-score against the baseline
// distribution, then apply the growth-rate and velocity boosts in that
// order, each multiplying the running trend score.
func scoreTrends(current, baseline map[string]map[models.SourceKind]int, minCount, windowHours, baselineHours int, now time.Time) []models.Trend {
	type row struct {
		entity        string
		sourceKind    models.SourceKind
		currentCount  int
		baselineCount int
	}

	bySource := make(map[models.SourceKind][]row)
	for entity, byKind := range current {
		for kind, currentCount := range byKind {
			if currentCount < minCount {
				continue
			}
			baselineCount := 0
			if m, ok := baseline[entity]; ok {
				baselineCount = m[kind]
			}
			bySource[kind] = append(bySource[kind], row{
				entity:        entity,
				sourceKind:    kind,
				currentCount:  currentCount,
				baselineCount: baselineCount,
			})
		}
	}

	var trends []models.Trend
	for kind, rows := range bySource {
		if len(rows) < 2 {
			continue
		}

		baselineCounts := make([]float64, len(rows))
		for i, r := range rows {
			baselineCounts[i] = float64(r.baselineCount)
		}
		baselineMean := stat.Mean(baselineCounts, nil)
		baselineStd := stat.StdDev(baselineCounts, nil)
		if baselineStd == 0 {
			baselineStd = 1
		}

		for _, r := range rows {
			zScore := (float64(r.currentCount) - baselineMean) / baselineStd

			var growthRate float64
			switch {
			case r.baselineCount > 0:
				growthRate = (float64(r.currentCount) - float64(r.baselineCount)) / float64(r.baselineCount)
			case r.currentCount > 0:
				growthRate = growthRateSentinel
			default:
				growthRate = 0
			}

			velocity := float64(r.currentCount) / float64(windowHours)

			trendScore := zScore
			if growthRate > 1.0 {
				trendScore *= 1 + math.Min(growthRate, 5)
			}
			if velocity > baselineMean/float64(baselineHours) {
				trendScore *= 1.2
			}

			trends = append(trends, models.Trend{
				Entity:        r.entity,
				SourceKind:    kind,
				CurrentCount:  r.currentCount,
				BaselineCount: r.baselineCount,
				TrendScore:    trendScore,
				GrowthRate:    growthRate,
				Velocity:      velocity,
				ZScore:        zScore,
				CreatedAt:     now,
			})
		}
	}

	sort.Slice(trends, func(i, j int) bool {
		return trends[i].TrendScore > trends[j].TrendScore
	})
	return trends
}
